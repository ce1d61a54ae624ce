package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
)

// PartitionTableQuerier reads the partition table of a single disk
//
//go:generate mockgen -source=catalog.go -destination=./catalog_mock.go -package=catalog
type PartitionTableQuerier interface {
	QueryPartitionTable(ctx context.Context, disk string) ([]v1alpha1.PartitionRecord, error)
}

// DiskLister reports the disk topology of the host
type DiskLister interface {
	ListDisks(ctx context.Context) ([]v1alpha1.BlockDevice, error)
}

// Catalog enumerates block devices and partitions. It never mutates anything.
type Catalog struct {
	lister           DiskLister
	queriers         []PartitionTableQuerier
	excludes         []glob.Glob
	includeRemovable bool
	logger           *log.Entry
}

// New creates a catalog on top of lister, enriching every disk with the
// records of the queriers in the given precedence
func New(lister DiskLister, excludePatterns []string, includeRemovable bool, queriers ...PartitionTableQuerier) (*Catalog, error) {
	c := &Catalog{
		lister:           lister,
		queriers:         queriers,
		includeRemovable: includeRemovable,
		logger:           log.WithField("Module", "catalog"),
	}

	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		c.excludes = append(c.excludes, g)
	}
	return c, nil
}

// Enumerate returns the disks sorted by path with their partitions sorted by number
func (c *Catalog) Enumerate(ctx context.Context) ([]v1alpha1.BlockDevice, error) {
	all, err := c.lister.ListDisks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list disks: %w", err)
	}

	var disks []v1alpha1.BlockDevice
	for _, disk := range all {
		if c.excluded(disk.Name) {
			c.logger.WithField("disk", disk.Path).Debug("Skip excluded disk")
			continue
		}
		if disk.Removable && !c.includeRemovable {
			c.logger.WithField("disk", disk.Path).Debug("Skip removable disk")
			continue
		}
		disks = append(disks, disk)
	}

	// each goroutine owns its slot, so merging stays in listing order
	records := make([][]v1alpha1.PartitionRecord, len(disks))
	group, gctx := errgroup.WithContext(ctx)
	for i := range disks {
		i := i
		group.Go(func() error {
			records[i] = c.queryRecords(gctx, disks[i].Path)
			return gctx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for i := range disks {
		disks[i].Partitions = mergePartitions(disks[i].Partitions, records[i])
		if disks[i].Model == "" {
			disks[i].Model = v1alpha1.Unknown
		}
	}

	sort.Slice(disks, func(i, j int) bool { return disks[i].Path < disks[j].Path })
	return disks, nil
}

// QueryPartitionTable merges the records of every querier for disk
func (c *Catalog) QueryPartitionTable(ctx context.Context, disk string) ([]v1alpha1.PartitionRecord, error) {
	records := c.queryRecords(ctx, disk)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// FindDisk looks a disk up by its device path
func FindDisk(disks []v1alpha1.BlockDevice, path string) *v1alpha1.BlockDevice {
	for i := range disks {
		if disks[i].Path == path {
			return &disks[i]
		}
	}
	return nil
}

func (c *Catalog) excluded(name string) bool {
	name = filepath.Base(name)
	for _, g := range c.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// queryRecords folds the records of all queriers by partition path, or by
// PARTUUID for records that carry no path. A failing querier only costs its
// enrichment.
func (c *Catalog) queryRecords(ctx context.Context, disk string) []v1alpha1.PartitionRecord {
	var merged []v1alpha1.PartitionRecord
	byPath := map[string]int{}
	byPartUUID := map[string]int{}
	for _, querier := range c.queriers {
		records, err := querier.QueryPartitionTable(ctx, disk)
		if err != nil {
			c.logger.WithError(err).WithField("disk", disk).Warning("Partition table query failed")
			continue
		}
		for _, record := range records {
			i, ok := 0, false
			if record.Path != "" {
				i, ok = byPath[record.Path]
			}
			if !ok && record.PartUUID != "" {
				i, ok = byPartUUID[strings.ToLower(record.PartUUID)]
			}
			if ok {
				merged[i] = merged[i].Merge(record)
			} else {
				i = len(merged)
				merged = append(merged, record)
			}
			if path := merged[i].Path; path != "" {
				byPath[path] = i
			}
			if partUUID := merged[i].PartUUID; partUUID != "" {
				byPartUUID[strings.ToLower(partUUID)] = i
			}
		}
	}
	return merged
}

func mergePartitions(partitions []v1alpha1.Partition, records []v1alpha1.PartitionRecord) []v1alpha1.Partition {
	result := make([]v1alpha1.Partition, 0, len(partitions))
	for _, p := range partitions {
		for _, record := range records {
			if record.Describes(p) {
				p = enrich(p, record)
				break
			}
		}
		if p.Label == "" {
			p.Label = v1alpha1.Unknown
		}
		result = append(result, p)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Number != result[j].Number {
			return result[i].Number < result[j].Number
		}
		return result[i].Path < result[j].Path
	})
	return result
}

func enrich(p v1alpha1.Partition, record v1alpha1.PartitionRecord) v1alpha1.Partition {
	if p.Number == 0 {
		p.Number = record.Number
	}
	if p.Size == 0 {
		p.Size = record.Size
	}
	if p.RawFSType == "" && record.FSType != "" {
		p.RawFSType = record.FSType
		p.FSType = v1alpha1.ClassifyFilesystem(record.FSType)
	}
	if (p.Label == "" || p.Label == v1alpha1.Unknown) && record.Label != "" {
		p.Label = record.Label
	}
	if p.UUID == "" {
		p.UUID = record.UUID
	}
	if p.PartUUID == "" {
		p.PartUUID = record.PartUUID
	}
	if p.PartType == "" {
		p.PartType = record.PartType
	}
	if len(p.MountPoints) == 0 && record.MountPoint != "" {
		p.MountPoints = []string{record.MountPoint}
	}
	p.Bootable = p.Bootable || record.Bootable
	p.ESP = p.ESP || record.ESP
	if p.FSType == "" {
		p.FSType = v1alpha1.FilesystemUnknown
	}
	return p
}
