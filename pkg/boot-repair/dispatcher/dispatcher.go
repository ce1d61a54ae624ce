package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/chroot"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/config"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

// Dispatcher maps a repair intent onto discovery, selection and the repair
// steps of one session
type Dispatcher struct {
	cfg        *config.Configuration
	discoverer Discoverer
	builder    Builder
	flags      FlagFixer
	executor   exechelper.Executor
	selector   Selector

	// OnTransition, when set, is called on every state change
	OnTransition func(from, to State)

	lock   sync.Mutex
	state  State
	logger *log.Entry
}

func New(cfg *config.Configuration, discoverer Discoverer, builder Builder, flags FlagFixer, executor exechelper.Executor) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		discoverer: discoverer,
		builder:    builder,
		flags:      flags,
		executor:   executor,
		state:      StateIdle,
		logger:     log.WithField("Module", "dispatcher"),
	}
}

// WithSelector sets the collaborator resolving ambiguous installation choices
func (d *Dispatcher) WithSelector(selector Selector) *Dispatcher {
	d.selector = selector
	return d
}

// State returns the current state
func (d *Dispatcher) State() State {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.state
}

func (d *Dispatcher) transition(to State) {
	d.lock.Lock()
	from := d.state
	d.state = to
	d.lock.Unlock()
	d.notify(from, to)
}

// start leaves Idle for the first state of a run, it fails when another run
// is in progress
func (d *Dispatcher) start(to State) error {
	d.lock.Lock()
	from := d.state
	if from != StateIdle {
		d.lock.Unlock()
		return fmt.Errorf("dispatcher is busy in state %s", from)
	}
	d.state = to
	d.lock.Unlock()
	d.notify(from, to)
	return nil
}

func (d *Dispatcher) notify(from, to State) {
	d.logger.WithFields(log.Fields{"from": from, "to": to}).Debug("State transition")
	if d.OnTransition != nil {
		d.OnTransition(from, to)
	}
}

// Run executes the request within s. Every step is recorded in the session.
// Whatever happens, the session ledger is unwound before Run returns. The
// returned error is nil on success and on partial success of a composite
// intent.
func (d *Dispatcher) Run(ctx context.Context, s *session.RepairSession, req Request) (err error) {
	if err := v1alpha1.ValidateIntent(req.Intent); err != nil {
		return err
	}

	if err := d.start(StateDiscoveringFirmware); err != nil {
		return err
	}

	s.Intent = req.Intent
	logger := s.Logger().WithField("intent", req.Intent)
	defer func() {
		d.transition(StateReportingResult)
		if unwindErr := s.Ledger.UnwindAll(); unwindErr != nil {
			logger.WithError(unwindErr).Error("Failed to release all session resources")
			if err == nil {
				err = unwindErr
			}
		}
		if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %v", err, ctx.Err())
		}
		d.transition(StateIdle)
	}()

	s.Firmware = session.DetectFirmwareMode(d.cfg.EFI.FirmwarePath)
	logger.WithField("firmware", s.Firmware).Info("Detected firmware mode")

	if v1alpha1.NeedsInstallation(req.Intent) {
		if err = d.selectInstallation(ctx, s, req.Index); err != nil {
			return err
		}
	}

	d.transition(StateExecutingAction)
	switch {
	case v1alpha1.IsComposite(req.Intent):
		return d.runAuto(ctx, s)
	case req.Intent == v1alpha1.IntentMBR:
		return stepError(d.record(s, d.installMBR(ctx, s)))
	case req.Intent == v1alpha1.IntentFlags:
		return stepError(d.record(s, d.checkBootFlag(ctx, s)))
	default:
		return d.runInChroot(ctx, s, req.Intent)
	}
}

// selectInstallation discovers, selects, locks and activates the
// installation the session works on
func (d *Dispatcher) selectInstallation(ctx context.Context, s *session.RepairSession, index int) error {
	d.transition(StateDiscoveringInstallations)
	step := v1alpha1.StepResult{Name: v1alpha1.StepDiscovery, Started: time.Now()}
	installations := d.discoverer.Discover(ctx)
	if err := ctx.Err(); err != nil {
		d.record(s, finish(step, v1alpha1.OutcomeFatal, "", err))
		return err
	}
	if len(installations) == 0 {
		d.record(s, finish(step, v1alpha1.OutcomeFatal, "", v1alpha1.ErrDiscoveryEmpty))
		return v1alpha1.ErrDiscoveryEmpty
	}
	d.record(s, finish(step, v1alpha1.OutcomeSuccess, fmt.Sprintf("%d installation(s) found", len(installations)), nil))

	d.transition(StateAwaitingSelection)
	selected, err := d.choose(ctx, installations, index)
	if err != nil {
		return err
	}
	installation := installations[selected-1]
	s.Installation = &installation
	s.Disk = installation.Partition.Disk
	s.Logger().WithFields(log.Fields{
		"partition":    installation.Partition.Path,
		"distribution": installation.Distribution,
		"dualBoot":     installation.DualBoot,
	}).Info("Selected installation")
	if installation.DualBoot {
		s.Logger().Warning("Another operating system shares the machine, its boot entries are preserved")
	}

	if err := s.LockDisk(s.Disk); err != nil {
		return err
	}

	step = v1alpha1.StepResult{Name: v1alpha1.StepActivate, Started: time.Now()}
	if err := d.discoverer.Activate(ctx, s.Installation, s.Ledger); err != nil {
		d.record(s, finish(step, v1alpha1.OutcomeFatal, "", err))
		return err
	}
	d.record(s, finish(step, v1alpha1.OutcomeSuccess, s.Installation.MountPath, nil))
	return nil
}

func (d *Dispatcher) choose(ctx context.Context, installations []v1alpha1.Installation, index int) (int, error) {
	if index == 0 {
		switch {
		case len(installations) == 1:
			return 1, nil
		case d.selector == nil:
			return 0, fmt.Errorf("%w: %d installations found, an index is required", v1alpha1.ErrNoSelection, len(installations))
		}
		selected, err := d.selector.Select(ctx, installations)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", v1alpha1.ErrNoSelection, err)
		}
		index = selected
	}

	if index < 1 || index > len(installations) {
		return 0, fmt.Errorf("%w: index %d out of range 1..%d", v1alpha1.ErrNoSelection, index, len(installations))
	}
	return index, nil
}

// runInChroot builds the repair environment, runs one intent in it and
// tears it down again even when the intent failed
func (d *Dispatcher) runInChroot(ctx context.Context, s *session.RepairSession, intent v1alpha1.RepairIntent) error {
	build := v1alpha1.StepResult{Name: v1alpha1.StepBuildEnvironment, Started: time.Now()}
	rc, err := d.builder.Build(ctx, s)
	if err != nil {
		d.record(s, finish(build, v1alpha1.OutcomeFatal, "", err))
		return err
	}
	d.record(s, finish(build, v1alpha1.OutcomeSuccess, "", nil))

	step := d.record(s, d.builder.RunInContext(ctx, rc, intent))
	teardown := d.teardown(s, rc)
	if err := stepError(step); err != nil {
		return err
	}
	return stepError(teardown)
}

// runAuto installs the bootloader, regenerates the menu and checks the boot
// flag. As a composite intent a failed step doesn't stop the following ones,
// the run fails only when no step succeeded.
func (d *Dispatcher) runAuto(ctx context.Context, s *session.RepairSession) error {
	var steps []v1alpha1.StepResult

	build := v1alpha1.StepResult{Name: v1alpha1.StepBuildEnvironment, Started: time.Now()}
	rc, err := d.builder.Build(ctx, s)
	if err != nil {
		d.record(s, tolerate(s.Intent, finish(build, v1alpha1.OutcomeFatal, "", err)))
		for _, name := range []string{v1alpha1.StepInstallBootloader, v1alpha1.StepRegenerateMenu} {
			steps = append(steps, d.skip(s, name, "no repair environment"))
		}
	} else {
		d.record(s, finish(build, v1alpha1.OutcomeSuccess, "", nil))
		for _, intent := range []v1alpha1.RepairIntent{v1alpha1.IntentBootloader, v1alpha1.IntentMenu} {
			if ctx.Err() != nil {
				steps = append(steps, d.skip(s, stepNameOf(intent), "cancelled"))
				continue
			}
			steps = append(steps, d.record(s, tolerate(s.Intent, d.builder.RunInContext(ctx, rc, intent))))
		}
		// the flag check works on the raw disks, release the chroot first.
		// A failed teardown leaves the run partial, the final unwind retries it.
		if teardown := d.teardown(s, rc); teardown.Failed() {
			s.Logger().WithError(teardown.Err).Warning("Repair environment not released, retrying at session end")
		}
	}

	if ctx.Err() != nil {
		steps = append(steps, d.skip(s, v1alpha1.StepBootFlag, "cancelled"))
	} else {
		steps = append(steps, d.record(s, tolerate(s.Intent, d.checkBootFlag(ctx, s))))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, step := range steps {
		if step.Outcome == v1alpha1.OutcomeSuccess {
			return nil
		}
	}
	return fmt.Errorf("%w: no repair step succeeded", v1alpha1.ErrCommandFailed)
}

// installMBR writes the BIOS boot code straight to the disk from the host,
// the installation only provides the boot directory
func (d *Dispatcher) installMBR(ctx context.Context, s *session.RepairSession) v1alpha1.StepResult {
	step := v1alpha1.StepResult{Name: v1alpha1.StepInstallMBR, Started: time.Now()}
	params := exechelper.ExecParams{
		CmdName: "grub-install",
		CmdArgs: []string{
			fmt.Sprintf("--target=%s", d.cfg.BIOS.Target),
			fmt.Sprintf("--boot-directory=%s", filepath.Join(s.Installation.MountPath, "boot")),
			s.Disk,
		},
		Timeout: d.cfg.Commands.TimeoutSeconds,
	}
	logger := s.Logger().WithField("command", params.CommandLine())
	logger.Info("Installing boot code to the master boot record")

	result := d.executor.RunCommand(ctx, params)
	output := result.CombinedOutput()
	for _, line := range utils.ConvertShellOutputs(output) {
		if strings.TrimSpace(line) != "" {
			logger.Info(line)
		}
	}
	if !result.Succeeded() {
		return finish(step, v1alpha1.OutcomeFatal, output, fmt.Errorf("%w: %s exited with %d", v1alpha1.ErrCommandFailed, params.CommandLine(), result.ExitCode))
	}
	return finish(step, v1alpha1.OutcomeSuccess, output, nil)
}

func (d *Dispatcher) checkBootFlag(ctx context.Context, s *session.RepairSession) v1alpha1.StepResult {
	step := v1alpha1.StepResult{Name: v1alpha1.StepBootFlag, Started: time.Now()}
	result, err := d.flags.Check(ctx, s)
	switch {
	case err != nil:
		return finish(step, v1alpha1.OutcomeFatal, "", err)
	case result.Changed():
		return finish(step, v1alpha1.OutcomeSuccess, fmt.Sprintf("boot flag set on %s", result.Flagged.Path), nil)
	case result.Existing != nil:
		return finish(step, v1alpha1.OutcomeSuccess, fmt.Sprintf("boot flag present on %s", result.Existing.Path), nil)
	}
	return finish(step, v1alpha1.OutcomeSkipped, "no partition eligible for the boot flag", nil)
}

func (d *Dispatcher) teardown(s *session.RepairSession, rc *chroot.RepairContext) v1alpha1.StepResult {
	step := v1alpha1.StepResult{Name: v1alpha1.StepTeardown, Started: time.Now()}
	if err := d.builder.Teardown(rc); err != nil {
		return d.record(s, tolerate(s.Intent, finish(step, v1alpha1.OutcomeFatal, "", err)))
	}
	return d.record(s, finish(step, v1alpha1.OutcomeSuccess, "", nil))
}

func (d *Dispatcher) skip(s *session.RepairSession, name, reason string) v1alpha1.StepResult {
	now := time.Now()
	return d.record(s, v1alpha1.StepResult{Name: name, Outcome: v1alpha1.OutcomeSkipped, Output: reason, Started: now, Finished: now})
}

func (d *Dispatcher) record(s *session.RepairSession, step v1alpha1.StepResult) v1alpha1.StepResult {
	s.AddStep(step)
	return step
}

// tolerate turns a fatal step of a composite intent into a recoverable one
func tolerate(intent v1alpha1.RepairIntent, step v1alpha1.StepResult) v1alpha1.StepResult {
	if v1alpha1.IsComposite(intent) && step.Outcome == v1alpha1.OutcomeFatal {
		step.Outcome = v1alpha1.OutcomeRecoverable
	}
	return step
}

func stepError(step v1alpha1.StepResult) error {
	if step.Outcome != v1alpha1.OutcomeFatal {
		return nil
	}
	if step.Err != nil {
		return step.Err
	}
	return fmt.Errorf("%w: step %s", v1alpha1.ErrCommandFailed, step.Name)
}

func stepNameOf(intent v1alpha1.RepairIntent) string {
	switch intent {
	case v1alpha1.IntentBootloader:
		return v1alpha1.StepInstallBootloader
	case v1alpha1.IntentMenu:
		return v1alpha1.StepRegenerateMenu
	}
	return intent
}

func finish(step v1alpha1.StepResult, outcome v1alpha1.Outcome, output string, err error) v1alpha1.StepResult {
	step.Outcome = outcome
	step.Output = output
	step.Err = err
	step.Finished = time.Now()
	return step
}
