package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/sessionlog"
)

func TestLockDisk(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "locks")

	first, err := LockDisk(lockDir, "/dev/sda")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(lockDir, "sda.lock"))

	_, err = LockDisk(lockDir, "/dev/sda")
	assert.ErrorIs(t, err, v1alpha1.ErrDiskBusy)

	// other disks are independent
	other, err := LockDisk(lockDir, "/dev/nvme0n1")
	require.NoError(t, err)
	defer other.Unlock()

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock())

	again, err := LockDisk(lockDir, "/dev/sda")
	require.NoError(t, err)
	assert.NoError(t, again.Unlock())
}

func TestLockName(t *testing.T) {
	assert.Equal(t, "sda.lock", lockName("/dev/sda"))
	assert.Equal(t, "disk_by-id_ata-WDC.lock", lockName("/dev/disk/by-id/ata-WDC"))
}

func TestDetectFirmwareMode(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, v1alpha1.FirmwareBIOS, DetectFirmwareMode(filepath.Join(dir, "efi")))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "efi"), 0755))
	assert.Equal(t, v1alpha1.FirmwareUEFI, DetectFirmwareMode(filepath.Join(dir, "efi")))
}

func TestRepairSession_Context(t *testing.T) {
	s := New(NewID(), v1alpha1.IntentBootloader, nil, nil, t.TempDir())

	require.NoError(t, s.BeginContext())
	assert.ErrorIs(t, s.BeginContext(), v1alpha1.ErrContextActive)
	s.EndContext()
	assert.NoError(t, s.BeginContext())
	s.EndContext()

	require.NoError(t, s.Close())
	assert.Error(t, s.BeginContext())
}

func TestRepairSession_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mounter.NewMockMounter(ctrl)
	m.EXPECT().Unmount("/mnt/root").Return(errors.New("target is busy"))

	out := &bytes.Buffer{}
	lockDir := t.TempDir()
	l := ledger.New(m, 0, 0, nil)
	s := New(NewID(), v1alpha1.IntentMenu, l, sessionlog.NewWithWriter(out, false), lockDir)
	require.NoError(t, s.LockDisk("/dev/sda"))
	require.NoError(t, s.LockDisk("/dev/sda"))
	require.NoError(t, l.AcquireMount("/mnt/root", false, func() error { return nil }))

	err := s.Close()
	assert.ErrorIs(t, err, v1alpha1.ErrUnwindFailed)

	// the lock is released even when the unwind was incomplete
	next, err := LockDisk(lockDir, "/dev/sda")
	require.NoError(t, err)
	assert.NoError(t, next.Unlock())

	assert.NoError(t, s.Close())
}

func TestRepairSession_AddStep(t *testing.T) {
	out := &bytes.Buffer{}
	s := New(NewID(), v1alpha1.IntentAuto, nil, sessionlog.NewWithWriter(out, false), t.TempDir())

	now := time.Now()
	s.AddStep(v1alpha1.StepResult{Name: v1alpha1.StepInstallBootloader, Outcome: v1alpha1.OutcomeSuccess, Started: now, Finished: now})
	s.AddStep(v1alpha1.StepResult{Name: v1alpha1.StepRegenerateMenu, Outcome: v1alpha1.OutcomeRecoverable, Err: v1alpha1.ErrCommandFailed, Started: now, Finished: now})

	steps := s.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, v1alpha1.StepRegenerateMenu, steps[1].Name)
	assert.Contains(t, out.String(), "[SUCCESS]")
	assert.Contains(t, out.String(), "[WARNING]")
}
