package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/sessionlog"
)

func newSession(steps ...v1alpha1.StepResult) *session.RepairSession {
	s := session.New("7c1f", v1alpha1.IntentAuto, nil, sessionlog.NewWithWriter(&bytes.Buffer{}, false), "")
	s.Firmware = v1alpha1.FirmwareUEFI
	for _, step := range steps {
		s.AddStep(step)
	}
	return s
}

func step(name string, outcome v1alpha1.Outcome) v1alpha1.StepResult {
	now := time.Now()
	return v1alpha1.StepResult{Name: name, Outcome: outcome, Started: now, Finished: now.Add(1500 * time.Millisecond)}
}

func TestSummarize(t *testing.T) {
	testCases := []struct {
		Description string
		Steps       []v1alpha1.StepResult
		Err         error
		Result      Result
		ExitCode    int
	}{
		{
			Description: "all steps succeeded",
			Steps:       []v1alpha1.StepResult{step(v1alpha1.StepInstallBootloader, v1alpha1.OutcomeSuccess), step(v1alpha1.StepBootFlag, v1alpha1.OutcomeSkipped)},
			Result:      ResultSuccess,
			ExitCode:    0,
		},
		{
			Description: "composite run with a failed step",
			Steps:       []v1alpha1.StepResult{step(v1alpha1.StepInstallBootloader, v1alpha1.OutcomeRecoverable), step(v1alpha1.StepRegenerateMenu, v1alpha1.OutcomeSuccess)},
			Result:      ResultPartial,
			ExitCode:    2,
		},
		{
			Description: "dispatcher error",
			Steps:       []v1alpha1.StepResult{step(v1alpha1.StepDiscovery, v1alpha1.OutcomeFatal)},
			Err:         v1alpha1.ErrDiscoveryEmpty,
			Result:      ResultFatal,
			ExitCode:    1,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Description, func(t *testing.T) {
			summary := Summarize(newSession(testCase.Steps...), testCase.Err)
			assert.Equal(t, testCase.Result, summary.Result)
			assert.Equal(t, testCase.ExitCode, summary.ExitCode())
			assert.Len(t, summary.Steps, len(testCase.Steps))
		})
	}
}

func TestSummary_Render(t *testing.T) {
	s := newSession(
		step(v1alpha1.StepInstallBootloader, v1alpha1.OutcomeSuccess),
		v1alpha1.StepResult{Name: v1alpha1.StepRegenerateMenu, Outcome: v1alpha1.OutcomeRecoverable, Err: errors.New("command failed: update-grub exited with 1\nmore")},
	)
	s.Installation = &v1alpha1.Installation{
		Partition:    v1alpha1.Partition{Path: "/dev/sda2"},
		Distribution: "Debian GNU/Linux 12 (bookworm)",
		Bootloader:   v1alpha1.BootloaderGRUB,
		DualBoot:     true,
	}
	s.EFIPartition = &v1alpha1.Partition{Path: "/dev/sda1"}

	out := &bytes.Buffer{}
	Summarize(s, nil).Render(out)
	rendered := text.StripEscape(out.String())

	assert.Contains(t, rendered, "Repair session 7c1f")
	assert.Contains(t, rendered, "/dev/sda2 (Debian GNU/Linux 12 (bookworm))")
	assert.Contains(t, rendered, "boot entries were preserved")
	assert.Contains(t, rendered, "/dev/sda1")
	assert.Contains(t, rendered, "partial")
	assert.Contains(t, rendered, "update-grub exited with 1 ...")
	assert.NotContains(t, rendered, "more")
}
