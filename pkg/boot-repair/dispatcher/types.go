package dispatcher

import (
	"context"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/bootflag"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/chroot"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
)

// State of the dispatcher
type State = string

const (
	StateIdle                     State = "Idle"
	StateDiscoveringFirmware      State = "DiscoveringFirmware"
	StateDiscoveringInstallations State = "DiscoveringInstallations"
	StateAwaitingSelection        State = "AwaitingSelection"
	StateExecutingAction          State = "ExecutingAction"
	StateReportingResult          State = "ReportingResult"
)

// Request selects what a session repairs
type Request struct {
	Intent v1alpha1.RepairIntent
	// Index is the 1-based installation number, 0 leaves the choice to the
	// Selector when more than one installation is found
	Index int
}

// Discoverer finds installations and mounts the selected one read-write
type Discoverer interface {
	Discover(ctx context.Context) []v1alpha1.Installation
	Activate(ctx context.Context, installation *v1alpha1.Installation, l *ledger.Ledger) error
}

// Builder runs repairs inside a chroot of the selected installation
type Builder interface {
	Build(ctx context.Context, s *session.RepairSession) (*chroot.RepairContext, error)
	RunInContext(ctx context.Context, rc *chroot.RepairContext, intent v1alpha1.RepairIntent) v1alpha1.StepResult
	Teardown(rc *chroot.RepairContext) error
}

// FlagFixer makes sure a partition carries the boot flag
type FlagFixer interface {
	Check(ctx context.Context, s bootflag.Session) (bootflag.Result, error)
}

// Selector resolves the installation when discovery found more than one
type Selector interface {
	// Select returns the 1-based index of the chosen installation
	Select(ctx context.Context, installations []v1alpha1.Installation) (int, error)
}
