package efi

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/catalog"
)

// Catalog enumerates the block devices
type Catalog interface {
	Enumerate(ctx context.Context) ([]v1alpha1.BlockDevice, error)
}

// MountLister reports where a device is mounted right now
type MountLister interface {
	GetDeviceMountPoints(devPath string) []string
}

// Locator searches the EFI System Partition of a disk
type Locator struct {
	catalog     Catalog
	querier     catalog.PartitionTableQuerier
	mounts      MountLister
	conventions []string
	maxSize     uint64
	logger      *log.Entry
}

func NewLocator(c Catalog, querier catalog.PartitionTableQuerier, mounts MountLister, conventions []string, maxSize uint64) *Locator {
	return &Locator{
		catalog:     c,
		querier:     querier,
		mounts:      mounts,
		conventions: conventions,
		maxSize:     maxSize,
		logger:      log.WithField("Module", "efi"),
	}
}

// Locate returns the ESP of disk, or nil when none of the strategies finds
// one. Each strategy only runs when the previous one found nothing:
// partition table marker, mount path convention, small FAT filesystem.
func (l *Locator) Locate(ctx context.Context, disk string) (*v1alpha1.Partition, error) {
	disks, err := l.catalog.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate block devices: %w", err)
	}
	device := catalog.FindDisk(disks, disk)
	if device == nil {
		return nil, fmt.Errorf("disk %s not found", disk)
	}

	records, err := l.querier.QueryPartitionTable(ctx, disk)
	if err != nil {
		return nil, fmt.Errorf("query partition table of %s: %w", disk, err)
	}

	logger := l.logger.WithField("disk", disk)
	if esp := l.byPartitionTable(device, records); esp != nil {
		logger.WithFields(log.Fields{"partition": esp.Path, "strategy": "partition-table"}).Info("Found EFI system partition")
		return esp, nil
	}
	if esp := l.byMountConvention(device); esp != nil {
		logger.WithFields(log.Fields{"partition": esp.Path, "strategy": "mount-convention"}).Info("Found EFI system partition")
		return esp, nil
	}
	if esp := l.bySizeHeuristic(device); esp != nil {
		logger.WithFields(log.Fields{"partition": esp.Path, "strategy": "fat-size"}).Info("Found EFI system partition")
		return esp, nil
	}

	logger.Warning("No EFI system partition found")
	return nil, nil
}

func (l *Locator) byPartitionTable(device *v1alpha1.BlockDevice, records []v1alpha1.PartitionRecord) *v1alpha1.Partition {
	for _, record := range records {
		if !record.ESP {
			continue
		}
		for i := range device.Partitions {
			if record.Describes(device.Partitions[i]) {
				esp := device.Partitions[i]
				return &esp
			}
		}
	}
	for i := range device.Partitions {
		if device.Partitions[i].ESP {
			esp := device.Partitions[i]
			return &esp
		}
	}
	return nil
}

func (l *Locator) byMountConvention(device *v1alpha1.BlockDevice) *v1alpha1.Partition {
	for i := range device.Partitions {
		p := device.Partitions[i]
		mountPoints := append([]string{}, p.MountPoints...)
		if l.mounts != nil {
			mountPoints = append(mountPoints, l.mounts.GetDeviceMountPoints(p.Path)...)
		}
		for _, mp := range mountPoints {
			if l.matchesConvention(mp) {
				return &p
			}
		}
	}
	return nil
}

func (l *Locator) bySizeHeuristic(device *v1alpha1.BlockDevice) *v1alpha1.Partition {
	for i := range device.Partitions {
		p := device.Partitions[i]
		if p.FSType == v1alpha1.FilesystemVFAT && p.Size > 0 && p.Size < l.maxSize {
			return &p
		}
	}
	return nil
}

func (l *Locator) matchesConvention(mountPoint string) bool {
	mountPoint = filepath.Clean(mountPoint)
	for _, convention := range l.conventions {
		if mountPoint == convention || strings.HasSuffix(mountPoint, convention) {
			return true
		}
	}
	return false
}
