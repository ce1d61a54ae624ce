package dispatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/bootflag"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/chroot"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
)

type fakeDiscoverer struct {
	workDir       string
	installations []v1alpha1.Installation
	activateErr   error

	discovered int
	activated  []string
}

func (d *fakeDiscoverer) Discover(context.Context) []v1alpha1.Installation {
	d.discovered++
	return append([]v1alpha1.Installation(nil), d.installations...)
}

func (d *fakeDiscoverer) Activate(_ context.Context, installation *v1alpha1.Installation, l *ledger.Ledger) error {
	if d.activateErr != nil {
		return fmt.Errorf("%w: %v", v1alpha1.ErrRemountFailed, d.activateErr)
	}
	mountPath := filepath.Join(d.workDir, "root-"+installation.Partition.Name)
	if err := l.AcquireDir(mountPath); err != nil {
		return err
	}
	installation.MountPath = mountPath
	d.activated = append(d.activated, installation.Partition.Path)
	return nil
}

type fakeBuilder struct {
	buildErr    error
	teardownErr error
	// results by intent, success when absent
	results map[v1alpha1.RepairIntent]v1alpha1.StepResult
	// onRun is called before an intent returns
	onRun func(intent v1alpha1.RepairIntent)

	built    int
	torn     int
	intents  []v1alpha1.RepairIntent
	sessions []*session.RepairSession
}

func (b *fakeBuilder) Build(_ context.Context, s *session.RepairSession) (*chroot.RepairContext, error) {
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	if err := s.BeginContext(); err != nil {
		return nil, err
	}
	b.built++
	b.sessions = append(b.sessions, s)
	return &chroot.RepairContext{Session: s, Root: s.Installation.MountPath, Disk: s.Disk, Firmware: s.Firmware}, nil
}

func (b *fakeBuilder) RunInContext(_ context.Context, _ *chroot.RepairContext, intent v1alpha1.RepairIntent) v1alpha1.StepResult {
	b.intents = append(b.intents, intent)
	if b.onRun != nil {
		b.onRun(intent)
	}
	if result, ok := b.results[intent]; ok {
		return result
	}
	now := time.Now()
	return v1alpha1.StepResult{Name: stepNameOf(intent), Outcome: v1alpha1.OutcomeSuccess, Started: now, Finished: now}
}

func (b *fakeBuilder) Teardown(rc *chroot.RepairContext) error {
	b.torn++
	if b.teardownErr != nil {
		return b.teardownErr
	}
	rc.Session.EndContext()
	return nil
}

type fakeFlags struct {
	result bootflag.Result
	err    error
	// disk locked through the session before the flag is set
	disk  string
	calls int
}

func (f *fakeFlags) Check(_ context.Context, s bootflag.Session) (bootflag.Result, error) {
	f.calls++
	if f.disk != "" {
		if err := s.LockDisk(f.disk); err != nil {
			return bootflag.Result{}, err
		}
	}
	return f.result, f.err
}

type fakeSelector struct {
	index   int
	err     error
	offered []v1alpha1.Installation
}

func (s *fakeSelector) Select(_ context.Context, installations []v1alpha1.Installation) (int, error) {
	s.offered = installations
	return s.index, s.err
}

func failedStep(intent v1alpha1.RepairIntent) v1alpha1.StepResult {
	now := time.Now()
	return v1alpha1.StepResult{
		Name:     stepNameOf(intent),
		Outcome:  v1alpha1.OutcomeFatal,
		Err:      fmt.Errorf("%w: exit status 1", v1alpha1.ErrCommandFailed),
		Started:  now,
		Finished: now,
	}
}

func installation(name string, dualBoot bool) v1alpha1.Installation {
	return v1alpha1.Installation{
		Partition: v1alpha1.Partition{
			Path:   "/dev/" + name,
			Name:   name,
			Disk:   "/dev/sda",
			FSType: v1alpha1.FilesystemExt4,
		},
		Distribution: "Ubuntu 22.04.3 LTS",
		Bootloader:   v1alpha1.BootloaderGRUB,
		DualBoot:     dualBoot,
	}
}
