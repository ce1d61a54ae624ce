package chroot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/config"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/exechelper/chrootexecutor"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

// resolvConf is the name resolution config inside the installation
const resolvConf = "etc/resolv.conf"

// Builder constructs the chroot environment used by every live repair. All
// mounts and file changes go through the session ledger.
type Builder struct {
	cfg      *config.Configuration
	mounter  mounter.Mounter
	locator  EFILocator
	executor exechelper.Executor
	shell    ShellRunner
}

func NewBuilder(cfg *config.Configuration, m mounter.Mounter, locator EFILocator, executor exechelper.Executor, shell ShellRunner) *Builder {
	return &Builder{
		cfg:      cfg,
		mounter:  m,
		locator:  locator,
		executor: executor,
		shell:    shell,
	}
}

// loggerOf writes to the log of the session the environment belongs to
func loggerOf(s *session.RepairSession) *log.Entry {
	return s.Logger().WithField("Module", "chroot")
}

// Build prepares the chroot of the session's installation. On failure
// everything acquired so far is released before returning.
func (b *Builder) Build(ctx context.Context, s *session.RepairSession) (rc *RepairContext, err error) {
	if s.Installation == nil || s.Installation.MountPath == "" {
		return nil, fmt.Errorf("%w: installation is not mounted read-write", v1alpha1.ErrNoSelection)
	}
	if err := s.BeginContext(); err != nil {
		return nil, err
	}

	root := s.Installation.MountPath
	mark := s.Ledger.Mark()
	logger := loggerOf(s).WithFields(log.Fields{"root": root, "firmware": s.Firmware})
	defer func() {
		if err == nil {
			return
		}
		if unwindErr := s.Ledger.UnwindTo(mark); unwindErr != nil {
			logger.WithError(unwindErr).Error("Failed to roll back chroot environment")
		}
		s.EndContext()
	}()

	for _, fs := range b.cfg.Chroot.PseudoFilesystems {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = b.bind(s, fs, filepath.Join(root, fs)); err != nil {
			return nil, err
		}
	}

	if !utils.IsDirEmpty(b.cfg.Chroot.DeviceMapperDir) {
		if err = b.bind(s, b.cfg.Chroot.DeviceMapperDir, filepath.Join(root, b.cfg.Chroot.DeviceMapperDir)); err != nil {
			return nil, err
		}
	}

	if err = b.copyResolvConf(s, root); err != nil {
		return nil, err
	}

	var esp *v1alpha1.Partition
	if s.Firmware == v1alpha1.FirmwareUEFI {
		if esp, err = b.mountESP(ctx, s, root); err != nil {
			return nil, err
		}
	}

	rc = &RepairContext{
		Session:  s,
		Root:     root,
		Disk:     s.Disk,
		Firmware: s.Firmware,
		Family:   DetectFamily(root),
		ESP:      esp,
		DualBoot: s.Installation.DualBoot,
		executor: chrootexecutor.NewWithExecutor(root, b.executor),
		mark:     mark,
	}
	logger.WithFields(log.Fields{"family": rc.Family, "dualBoot": rc.DualBoot}).Info("Chroot environment ready")
	return rc, nil
}

func (b *Builder) bind(s *session.RepairSession, source, target string) error {
	if err := s.Ledger.AcquireDir(target); err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	return s.Ledger.AcquireMount(target, true, func() error {
		return b.mounter.BindMount(source, target)
	})
}

// copyResolvConf moves the installation's resolv.conf aside and writes the
// host's in its place, the unwind removes it and restores the original
func (b *Builder) copyResolvConf(s *session.RepairSession, root string) error {
	content, err := os.ReadFile(b.cfg.Chroot.ResolvConf)
	if err != nil {
		loggerOf(s).WithError(err).Warning("Host has no name resolution config, skipping")
		return nil
	}

	target := filepath.Join(root, resolvConf)
	if err := s.Ledger.AcquireDir(filepath.Dir(target)); err != nil {
		return err
	}
	if _, err := s.Ledger.AcquireBackup(target); err != nil {
		return err
	}
	return s.Ledger.AcquireFile(target, content, 0644)
}

func (b *Builder) mountESP(ctx context.Context, s *session.RepairSession, root string) (*v1alpha1.Partition, error) {
	esp := s.EFIPartition
	if esp == nil {
		located, err := b.locator.Locate(ctx, s.Disk)
		if err != nil {
			return nil, fmt.Errorf("locate EFI system partition: %w", err)
		}
		if located == nil {
			return nil, fmt.Errorf("%w on %s", v1alpha1.ErrEFINotFound, s.Disk)
		}
		esp = located
		s.EFIPartition = esp
	}

	target := filepath.Join(root, b.cfg.EFI.Directory)
	if err := s.Ledger.AcquireDir(target); err != nil {
		return nil, err
	}
	err := s.Ledger.AcquireMount(target, false, func() error {
		return b.mounter.MountReadWrite(esp.Path, target, v1alpha1.FilesystemVFAT, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("mount EFI system partition %s: %w", esp.Path, err)
	}
	return esp, nil
}

// RunInContext runs one repair intent inside the chroot. Supported intents
// are bootloader, menu and custom.
func (b *Builder) RunInContext(ctx context.Context, rc *RepairContext, intent v1alpha1.RepairIntent) v1alpha1.StepResult {
	switch intent {
	case v1alpha1.IntentBootloader:
		return b.run(ctx, rc, v1alpha1.StepInstallBootloader, InstallCommand(b.cfg, rc))

	case v1alpha1.IntentMenu:
		params, menu := MenuCommand(b.cfg, rc)
		result := v1alpha1.StepResult{Name: v1alpha1.StepRegenerateMenu, Started: time.Now()}
		if _, err := rc.Session.Ledger.AcquireBackup(filepath.Join(rc.Root, menu)); err != nil {
			return finish(result, v1alpha1.OutcomeFatal, "", fmt.Errorf("backup %s: %w", menu, err))
		}
		return b.run(ctx, rc, v1alpha1.StepRegenerateMenu, params)

	case v1alpha1.IntentCustom:
		result := v1alpha1.StepResult{Name: v1alpha1.StepCustomShell, Started: time.Now()}
		rc.Session.Logger().WithField("root", rc.Root).Info("Starting interactive shell, exit it to tear the environment down")
		if err := b.shell.RunShell(ctx, rc.Root, b.cfg.Chroot.Shell); err != nil {
			return finish(result, v1alpha1.OutcomeFatal, "", err)
		}
		return finish(result, v1alpha1.OutcomeSuccess, "", nil)
	}

	return v1alpha1.StepResult{
		Name:     intent,
		Outcome:  v1alpha1.OutcomeFatal,
		Err:      fmt.Errorf("%w: %q can't run inside a chroot", v1alpha1.ErrInvalidIntent, intent),
		Started:  time.Now(),
		Finished: time.Now(),
	}
}

func (b *Builder) run(ctx context.Context, rc *RepairContext, step string, params exechelper.ExecParams) v1alpha1.StepResult {
	result := v1alpha1.StepResult{Name: step, Started: time.Now()}
	logger := rc.Session.Logger().WithField("command", params.CommandLine())
	logger.Info("Running command in chroot")

	res := rc.executor.RunCommand(ctx, params)
	output := res.CombinedOutput()
	for _, line := range utils.ConvertShellOutputs(output) {
		if strings.TrimSpace(line) != "" {
			logger.Info(line)
		}
	}

	if !res.Succeeded() {
		err := fmt.Errorf("%w: %s exited with %d", v1alpha1.ErrCommandFailed, params.CommandLine(), res.ExitCode)
		if res.Error != nil {
			err = fmt.Errorf("%w: %s exited with %d: %v", v1alpha1.ErrCommandFailed, params.CommandLine(), res.ExitCode, res.Error)
		}
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", err, ctx.Err())
		}
		return finish(result, v1alpha1.OutcomeFatal, output, err)
	}
	return finish(result, v1alpha1.OutcomeSuccess, output, nil)
}

// Teardown releases everything Build acquired, also when a command failed.
// Calling it twice is harmless.
func (b *Builder) Teardown(rc *RepairContext) error {
	if rc == nil || rc.torn {
		return nil
	}
	rc.torn = true
	defer rc.Session.EndContext()

	logger := loggerOf(rc.Session).WithField("root", rc.Root)
	if err := rc.Session.Ledger.UnwindTo(rc.mark); err != nil {
		logger.WithError(err).Error("Chroot teardown incomplete")
		return err
	}
	logger.Info("Chroot environment torn down")
	return nil
}

func finish(result v1alpha1.StepResult, outcome v1alpha1.Outcome, output string, err error) v1alpha1.StepResult {
	result.Outcome = outcome
	result.Output = output
	result.Err = err
	result.Finished = time.Now()
	return result
}
