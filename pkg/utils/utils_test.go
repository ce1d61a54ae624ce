package utils

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertShellOutputs(t *testing.T) {
	tests := []struct {
		name    string
		outputs string
		want    []string
	}{
		{name: "empty", outputs: "", want: nil},
		{name: "trailing newline", outputs: "a\nb\n", want: []string{"a", "b"}},
		{name: "no trailing newline", outputs: "a\nb", want: []string{"a", "b"}},
		{name: "blank line kept", outputs: "a\n\nb", want: []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertShellOutputs(tt.outputs); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ConvertShellOutputs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseKeyValueLines(t *testing.T) {
	content := `# os-release
NAME="Ubuntu"
VERSION_ID="22.04"
PRETTY_NAME="Ubuntu 22.04.3 LTS"
ID=ubuntu
ID_LIKE='debian'
BROKEN
`
	props := ParseKeyValueLines(content)

	assert.Equal(t, "Ubuntu", props["NAME"])
	assert.Equal(t, "Ubuntu 22.04.3 LTS", props["PRETTY_NAME"])
	assert.Equal(t, "ubuntu", props["ID"])
	assert.Equal(t, "debian", props["ID_LIKE"])
	_, ok := props["BROKEN"]
	assert.False(t, ok)
}

func TestConvertBytesToStr(t *testing.T) {
	assert.Equal(t, "512MB", ConvertBytesToStr(512*1024*1024))
	assert.Equal(t, "1GB", ConvertBytesToStr(1<<30))
	assert.Equal(t, "1.5KB", ConvertBytesToStr(1536))
	assert.Equal(t, "100B", ConvertBytesToStr(100))
}

func TestPartitionPath(t *testing.T) {
	testCases := []struct {
		Description string
		Disk        string
		Number      int
		Expect      string
	}{
		{Description: "scsi disk", Disk: "/dev/sda", Number: 2, Expect: "/dev/sda2"},
		{Description: "nvme namespace", Disk: "/dev/nvme0n1", Number: 1, Expect: "/dev/nvme0n1p1"},
		{Description: "mmc card", Disk: "/dev/mmcblk0", Number: 3, Expect: "/dev/mmcblk0p3"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Description, func(t *testing.T) {
			if got := PartitionPath(testCase.Disk, testCase.Number); got != testCase.Expect {
				t.Fatalf("expect %s, got %s", testCase.Expect, got)
			}
		})
	}
}

func TestPartitionNumber(t *testing.T) {
	for name, expect := range map[string]int{
		"/dev/sda1":      1,
		"/dev/nvme0n1p2": 2,
		"sdb12":          12,
		"/dev/sdc":       0,
	} {
		if got := PartitionNumber(name); got != expect {
			t.Fatalf("%s: expect %d, got %d", name, expect, got)
		}
	}
}
