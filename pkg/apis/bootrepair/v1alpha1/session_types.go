package v1alpha1

import (
	"fmt"
	"time"
)

// RepairIntent is the repair action selected by the caller
type RepairIntent = string

const (
	IntentAuto       RepairIntent = "auto"
	IntentBootloader RepairIntent = "bootloader"
	IntentMBR        RepairIntent = "mbr"
	IntentMenu       RepairIntent = "menu"
	IntentFlags      RepairIntent = "flags"
	IntentCustom     RepairIntent = "custom"
)

// AllIntents in menu order
var AllIntents = []RepairIntent{IntentAuto, IntentBootloader, IntentMBR, IntentMenu, IntentFlags, IntentCustom}

// ValidateIntent returns ErrInvalidIntent for unknown intents
func ValidateIntent(intent RepairIntent) error {
	for _, known := range AllIntents {
		if intent == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidIntent, intent)
}

// IsComposite is true for intents whose step failures don't abort the remaining steps
func IsComposite(intent RepairIntent) bool {
	return intent == IntentAuto
}

// NeedsInstallation is false for intents that work on the raw disks only
func NeedsInstallation(intent RepairIntent) bool {
	return intent != IntentFlags
}

// Outcome of a single repair step
type Outcome = string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRecoverable Outcome = "recoverable-failure"
	OutcomeFatal       Outcome = "fatal-failure"
	OutcomeSkipped     Outcome = "skipped"
)

// Step names recorded in a session
const (
	StepDiscovery         = "discovery"
	StepActivate          = "activate"
	StepBuildEnvironment  = "build-environment"
	StepInstallBootloader = "install-bootloader"
	StepInstallMBR        = "install-mbr"
	StepRegenerateMenu    = "regenerate-menu"
	StepBootFlag          = "boot-flag"
	StepCustomShell       = "custom-shell"
	StepTeardown          = "teardown"
)

// StepResult records what happened to one step of a session
type StepResult struct {
	Name     string
	Outcome  Outcome
	Output   string
	Err      error
	Started  time.Time
	Finished time.Time
}

// Failed is true for recoverable and fatal outcomes
func (s StepResult) Failed() bool {
	return s.Outcome == OutcomeRecoverable || s.Outcome == OutcomeFatal
}
