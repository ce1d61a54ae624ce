package discoverer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
)

// Catalog enumerates the block devices to scan
type Catalog interface {
	Enumerate(ctx context.Context) ([]v1alpha1.BlockDevice, error)
}

// Prober inspects a single partition
type Prober interface {
	Probe(ctx context.Context, partition v1alpha1.Partition, disk v1alpha1.BlockDevice) (v1alpha1.FilesystemKind, *v1alpha1.InstallationEvidence, error)
}

// Discoverer builds the list of bootable Linux installations
type Discoverer struct {
	catalog Catalog
	prober  Prober
	mounter mounter.Mounter
	workDir string

	// PrestageLedger, when set, mounts every discovered installation
	// read-write during discovery and tracks the mounts in it
	PrestageLedger *ledger.Ledger
	prestaged      map[string]string

	logger *log.Entry
}

func New(catalog Catalog, prober Prober, m mounter.Mounter, workDir string) *Discoverer {
	return &Discoverer{
		catalog:   catalog,
		prober:    prober,
		mounter:   m,
		workDir:   workDir,
		prestaged: map[string]string{},
		logger:    log.WithField("Module", "discoverer"),
	}
}

// WithLogger sends the discovery log to logger, e.g. the log of a repair session
func (d *Discoverer) WithLogger(logger *log.Entry) *Discoverer {
	d.logger = logger.WithField("Module", "discoverer")
	return d
}

// Discover returns the installations in catalog order. It never fails, an
// empty result is for the caller to judge.
func (d *Discoverer) Discover(ctx context.Context) []v1alpha1.Installation {
	installations := []v1alpha1.Installation{}

	disks, err := d.catalog.Enumerate(ctx)
	if err != nil {
		d.logger.WithError(err).Warning("Failed to enumerate block devices")
		return installations
	}

	for _, disk := range disks {
		for _, partition := range disk.Partitions {
			if ctx.Err() != nil {
				d.logger.WithError(ctx.Err()).Warning("Discovery interrupted")
				return installations
			}
			if partition.ESP {
				continue
			}

			installation, ok := d.probe(ctx, partition, disk)
			if !ok {
				continue
			}

			if d.PrestageLedger != nil {
				if err := d.prestage(ctx, &installation); err != nil {
					d.logger.WithError(err).WithField("partition", partition.Path).Warning("Dropping installation which can't be mounted read-write")
					continue
				}
			}
			installations = append(installations, installation)
		}
	}

	d.logger.WithField("installations", len(installations)).Info("Discovery finished")
	return installations
}

func (d *Discoverer) probe(ctx context.Context, partition v1alpha1.Partition, disk v1alpha1.BlockDevice) (v1alpha1.Installation, bool) {
	logger := d.logger.WithField("partition", partition.Path)

	_, evidence, err := d.prober.Probe(ctx, partition, disk)
	if err != nil {
		logger.WithError(err).Warning("Probe inconclusive, skipping partition")
		return v1alpha1.Installation{}, false
	}
	if evidence == nil || !evidence.Complete() {
		logger.Debug("No installation on partition")
		return v1alpha1.Installation{}, false
	}

	logger.WithFields(log.Fields{"distribution": evidence.Distribution, "dualBoot": evidence.DualBoot}).Info("Found installation")
	return v1alpha1.Installation{
		Partition:    partition,
		Distribution: evidence.Distribution,
		Bootloader:   evidence.Bootloader,
		DualBoot:     evidence.DualBoot,
	}, true
}

func (d *Discoverer) prestage(ctx context.Context, installation *v1alpha1.Installation) error {
	if mountPath, ok := d.prestaged[installation.Partition.Path]; ok {
		installation.MountPath = mountPath
		return nil
	}
	if err := d.Activate(ctx, installation, d.PrestageLedger); err != nil {
		return err
	}
	d.prestaged[installation.Partition.Path] = installation.MountPath
	return nil
}

// Activate mounts the installation read-write below the work directory. The
// mount and its directory are tracked by l, nothing is left behind on failure.
func (d *Discoverer) Activate(ctx context.Context, installation *v1alpha1.Installation, l *ledger.Ledger) error {
	if installation.MountPath != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	partition := installation.Partition
	mountPath := filepath.Join(d.workDir, fmt.Sprintf("root-%s-%s", partition.Name, uuid.NewString()[:8]))
	mark := l.Mark()

	err := l.AcquireDir(mountPath)
	if err == nil {
		err = l.AcquireMount(mountPath, false, func() error {
			return d.mounter.MountReadWrite(partition.Path, mountPath, fsTypeOf(partition), nil)
		})
	}
	if err != nil {
		if unwindErr := l.UnwindTo(mark); unwindErr != nil {
			d.logger.WithError(unwindErr).Error("Failed to roll back read-write mount")
		}
		return fmt.Errorf("%w: %s: %v", v1alpha1.ErrRemountFailed, partition.Path, err)
	}

	installation.MountPath = mountPath
	d.logger.WithFields(log.Fields{"partition": partition.Path, "mountpoint": mountPath}).Info("Mounted installation read-write")
	return nil
}

func fsTypeOf(partition v1alpha1.Partition) string {
	if partition.FSType != v1alpha1.FilesystemUnknown && partition.FSType != "" {
		return partition.FSType
	}
	return partition.RawFSType
}
