package prober

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
)

// writeTree creates files below root, names ending with / are directories
func writeTree(t *testing.T, root string, tree map[string]string) {
	t.Helper()
	for name, content := range tree {
		path := filepath.Join(root, name)
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(path, 0755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func installationTree() map[string]string {
	return map[string]string{
		"etc/fstab":      "# <file system> <mount point> <type> <options> <dump> <pass>\nUUID=0f3c9a8e / ext4 errors=remount-ro 0 1\nUUID=8A2B-1C3D /boot/efi vfat umask=0077 0 1\n",
		"etc/os-release": "NAME=\"Ubuntu\"\nVERSION=\"22.04.3 LTS (Jammy Jellyfish)\"\nPRETTY_NAME=\"Ubuntu 22.04.3 LTS\"\n",
		"boot/grub/":     "",
		"usr/bin/":       "",
	}
}

func linuxDisk(extra ...v1alpha1.Partition) v1alpha1.BlockDevice {
	disk := v1alpha1.BlockDevice{
		Path: "/dev/sda",
		Name: "sda",
		Partitions: []v1alpha1.Partition{
			{Path: "/dev/sda1", Name: "sda1", Disk: "/dev/sda", Number: 1, FSType: v1alpha1.FilesystemExt4, UUID: "0f3c9a8e"},
		},
	}
	disk.Partitions = append(disk.Partitions, extra...)
	return disk
}

func newFixtureProber(t *testing.T, tree map[string]string) (*Prober, *mounter.FakeMounter, string) {
	fixture := t.TempDir()
	writeTree(t, fixture, tree)

	fake := mounter.NewFakeMounter(map[string]string{"/dev/sda1": fixture})
	workDir := filepath.Join(t.TempDir(), "work")
	return New(mounter.New(fake), workDir, []string{"ext2", "ext3", "ext4", "xfs", "btrfs"}), fake, workDir
}

func TestProber_Probe(t *testing.T) {
	testCases := []struct {
		Description    string
		Tree           map[string]string
		Disk           v1alpha1.BlockDevice
		ExpectComplete bool
		ExpectDistro   string
		ExpectDualBoot bool
	}{
		{
			Description:    "ext4 installation with os-release",
			Tree:           installationTree(),
			Disk:           linuxDisk(),
			ExpectComplete: true,
			ExpectDistro:   "Ubuntu 22.04.3 LTS",
		},
		{
			Description:    "ntfs partition next to the installation",
			Tree:           installationTree(),
			Disk:           linuxDisk(v1alpha1.Partition{Path: "/dev/sda2", Name: "sda2", Disk: "/dev/sda", Number: 2, FSType: v1alpha1.FilesystemNTFS}),
			ExpectComplete: true,
			ExpectDistro:   "Ubuntu 22.04.3 LTS",
			ExpectDualBoot: true,
		},
		{
			Description: "fstab without a root entry",
			Tree: map[string]string{
				"etc/fstab":       "/dev/sdb1 /data xfs defaults 0 0\n",
				"etc/lsb-release": "DISTRIB_ID=Debian\n",
				"boot/":           "",
				"usr/":            "",
			},
			Disk:         linuxDisk(),
			ExpectDistro: "Debian",
		},
		{
			Description:  "data partition",
			Tree:         map[string]string{"lost+found/": "", "backups/db.dump": "x"},
			Disk:         linuxDisk(),
			ExpectDistro: v1alpha1.Unknown,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Description, func(t *testing.T) {
			p, fake, workDir := newFixtureProber(t, testCase.Tree)

			kind, evidence, err := p.Probe(context.TODO(), testCase.Disk.Partitions[0], testCase.Disk)
			require.NoError(t, err)
			assert.Equal(t, v1alpha1.FilesystemExt4, kind)
			require.NotNil(t, evidence)
			assert.Equal(t, testCase.ExpectComplete, evidence.Complete())
			assert.Equal(t, testCase.ExpectDistro, evidence.Distribution)
			assert.Equal(t, testCase.ExpectDualBoot, evidence.DualBoot)

			// the probe leaves neither a mount nor a directory behind
			assert.Empty(t, fake.Mounted())
			assert.NoDirExists(t, workDir)
		})
	}
}

func TestProber_ProbeMountFailure(t *testing.T) {
	p, fake, workDir := newFixtureProber(t, installationTree())
	fake.MountErrors["/dev/sda1"] = errors.New("wrong fs type, bad option, bad superblock")

	disk := linuxDisk()
	_, evidence, err := p.Probe(context.TODO(), disk.Partitions[0], disk)
	assert.ErrorIs(t, err, v1alpha1.ErrProbeInconclusive)
	assert.Nil(t, evidence)
	assert.Empty(t, fake.Mounted())
	assert.NoDirExists(t, workDir)
}

func TestProber_ProbeSkipsOtherFilesystems(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no mounter call is expected
	p := New(mounter.NewMockMounter(ctrl), t.TempDir(), []string{"ext4"})
	for _, kind := range []v1alpha1.FilesystemKind{v1alpha1.FilesystemNTFS, v1alpha1.FilesystemVFAT, v1alpha1.FilesystemUnknown, v1alpha1.FilesystemXFS} {
		got, evidence, err := p.Probe(context.TODO(), v1alpha1.Partition{Path: "/dev/sdb1", FSType: kind}, v1alpha1.BlockDevice{})
		assert.NoError(t, err)
		assert.Nil(t, evidence)
		assert.Equal(t, kind, got)
	}
}

func TestProber_ProbeMountsReadOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mounter.NewMockMounter(ctrl)
	gomock.InOrder(
		m.EXPECT().MountReadOnly("/dev/sda1", gomock.Any(), "ext4", []string{"noload"}).Return(nil),
		m.EXPECT().Unmount(gomock.Any()).Return(nil),
	)

	p := New(m, t.TempDir(), []string{"ext4"})
	disk := linuxDisk()
	_, evidence, err := p.Probe(context.TODO(), disk.Partitions[0], disk)
	assert.NoError(t, err)
	assert.False(t, evidence.Complete())
}

func TestProber_ProbeCanceled(t *testing.T) {
	p, fake, _ := newFixtureProber(t, installationTree())
	ctx, cancel := context.WithCancel(context.TODO())
	cancel()

	disk := linuxDisk()
	_, _, err := p.Probe(ctx, disk.Partitions[0], disk)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.GetLog())
}

func TestReadOnlyMountOptions(t *testing.T) {
	assert.Equal(t, []string{"noload"}, ReadOnlyMountOptions(v1alpha1.FilesystemExt3))
	assert.Equal(t, []string{"norecovery"}, ReadOnlyMountOptions(v1alpha1.FilesystemXFS))
	assert.Nil(t, ReadOnlyMountOptions(v1alpha1.FilesystemBtrfs))
}

func TestDetectBootloader(t *testing.T) {
	testCases := []struct {
		Description string
		Tree        map[string]string
		Expect      v1alpha1.BootloaderKind
	}{
		{Description: "grub2 on rhel", Tree: map[string]string{"boot/grub2/grub.cfg": ""}, Expect: v1alpha1.BootloaderGRUB},
		{Description: "extlinux", Tree: map[string]string{"boot/extlinux/extlinux.conf": ""}, Expect: v1alpha1.BootloaderSyslinux},
		{Description: "systemd-boot", Tree: map[string]string{"boot/loader/entries/arch.conf": ""}, Expect: v1alpha1.BootloaderSystemdBoot},
		{Description: "nothing", Tree: map[string]string{"boot/vmlinuz": ""}, Expect: v1alpha1.BootloaderUnknown},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Description, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, testCase.Tree)
			assert.Equal(t, testCase.Expect, DetectBootloader(root))
		})
	}
}
