package v1alpha1

import "errors"

var (
	// ErrDiscoveryEmpty no installation was found, fatal to the session only
	ErrDiscoveryEmpty = errors.New("no linux installation found")

	// ErrProbeInconclusive a partition couldn't be mounted or read, the partition is excluded
	ErrProbeInconclusive = errors.New("probe inconclusive")

	// ErrRemountFailed an installation couldn't be mounted read-write
	ErrRemountFailed = errors.New("read-write mount failed")

	// ErrEFINotFound no EFI System Partition for a UEFI repair
	ErrEFINotFound = errors.New("EFI system partition not found")

	// ErrCommandFailed a repair command exited non-zero
	ErrCommandFailed = errors.New("command failed")

	// ErrUnwindFailed some ledger entries couldn't be released
	ErrUnwindFailed = errors.New("ledger unwind incomplete")

	// ErrDiskBusy another session holds the disk
	ErrDiskBusy = errors.New("disk is locked by another repair session")

	// ErrContextActive a session already has a live repair context
	ErrContextActive = errors.New("repair context already active")

	// ErrNoSelection the installation choice is ambiguous or out of range
	ErrNoSelection = errors.New("no installation selected")

	// ErrInvalidIntent unknown repair intent
	ErrInvalidIntent = errors.New("invalid repair intent")
)
