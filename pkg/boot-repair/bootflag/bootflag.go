package bootflag

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
)

// Catalog enumerates the block devices of the host
type Catalog interface {
	Enumerate(ctx context.Context) ([]v1alpha1.BlockDevice, error)
}

// ChangeWatcher subscribes to udev change events of a device. wait blocks
// until udev processed the change, stop releases the subscription.
type ChangeWatcher interface {
	WatchChange(devName string) (wait func(ctx context.Context, timeout time.Duration) error, stop func())
}

// Session grants exclusive mutation rights over a disk and receives the log
// of the check
type Session interface {
	LockDisk(disk string) error
	Logger() *log.Entry
}

// Result of a boot flag check. Both partitions are nil when no disk has a
// bootable partition and no MBR disk holds a Linux partition.
type Result struct {
	// Existing is the first partition found with the boot flag already set
	Existing *v1alpha1.Partition
	// Flagged is the partition the flag was set on
	Flagged *v1alpha1.Partition
}

// Changed is true when the partition table was modified
func (r Result) Changed() bool {
	return r.Flagged != nil
}

// Fixer makes sure a legacy BIOS finds an active partition to boot
type Fixer struct {
	catalog       Catalog
	executor      exechelper.Executor
	watcher       ChangeWatcher
	settleTimeout time.Duration
}

func New(catalog Catalog, executor exechelper.Executor, watcher ChangeWatcher, settleTimeout time.Duration) *Fixer {
	return &Fixer{
		catalog:       catalog,
		executor:      executor,
		watcher:       watcher,
		settleTimeout: settleTimeout,
	}
}

// Check scans all disks for a partition carrying the boot flag. When there
// is none it locks the disk of the first Linux partition on an MBR disk,
// sets the flag and waits for udev to pick the change up.
func (f *Fixer) Check(ctx context.Context, s Session) (Result, error) {
	logger := s.Logger().WithField("Module", "bootflag")

	disks, err := f.catalog.Enumerate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("enumerate disks: %w", err)
	}

	if existing := findBootable(disks); existing != nil {
		logger.WithField("partition", existing.Path).Info("Boot flag already set")
		return Result{Existing: existing}, nil
	}

	candidate := findCandidate(disks)
	if candidate == nil {
		logger.Info("No bootable partition and no Linux partition on an MBR disk")
		return Result{}, nil
	}

	if err := s.LockDisk(candidate.Disk); err != nil {
		return Result{}, fmt.Errorf("lock %s: %w", candidate.Disk, err)
	}

	// subscribe before parted runs, the change event follows it immediately
	wait, stop := f.watcher.WatchChange(filepath.Base(candidate.Disk))
	defer stop()

	if err := f.setBootFlag(ctx, logger, candidate); err != nil {
		return Result{}, err
	}

	// the flag is written, a missing event only delays the new table
	if err := wait(ctx, f.settleTimeout); err != nil {
		logger.WithError(err).WithField("disk", candidate.Disk).Warning("Partition table change not confirmed by udev")
	}

	flagged := *candidate
	flagged.Bootable = true
	return Result{Flagged: &flagged}, nil
}

func (f *Fixer) setBootFlag(ctx context.Context, logger *log.Entry, partition *v1alpha1.Partition) error {
	params := exechelper.ExecParams{
		CmdName: "parted",
		CmdArgs: []string{"-s", partition.Disk, "set", strconv.Itoa(partition.Number), "boot", "on"},
	}
	logger = logger.WithFields(log.Fields{"partition": partition.Path, "command": params.CommandLine()})
	logger.Info("Setting boot flag")

	result := f.executor.RunCommand(ctx, params)
	if !result.Succeeded() {
		logger.WithField("output", result.CombinedOutput()).Error("Failed to set boot flag")
		return fmt.Errorf("%w: %s exited with %d: %s", v1alpha1.ErrCommandFailed, params.CommandLine(), result.ExitCode, result.CombinedOutput())
	}
	return nil
}

func findBootable(disks []v1alpha1.BlockDevice) *v1alpha1.Partition {
	for i := range disks {
		for j := range disks[i].Partitions {
			if disks[i].Partitions[j].Bootable {
				return &disks[i].Partitions[j]
			}
		}
	}
	return nil
}

// findCandidate returns the first Linux partition on an MBR disk, GPT disks
// have no active flag a BIOS would look at
func findCandidate(disks []v1alpha1.BlockDevice) *v1alpha1.Partition {
	for i := range disks {
		if disks[i].PartTableType != v1alpha1.PartTableMBR {
			continue
		}
		for j := range disks[i].Partitions {
			p := &disks[i].Partitions[j]
			if v1alpha1.IsLinuxFilesystem(p.FSType) && p.Number > 0 {
				return p
			}
		}
	}
	return nil
}
