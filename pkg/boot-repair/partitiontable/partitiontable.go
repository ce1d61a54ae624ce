package partitiontable

import (
	"context"
	"fmt"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

const (
	mbrTypeEmpty = 0x00
	mbrTypeESP   = 0xef
)

// Reader decodes the on-disk partition table, it never writes to the device
type Reader struct {
	open   func(device string) (partition.Table, error)
	logger *log.Entry
}

func New() *Reader {
	return &Reader{
		open:   readTable,
		logger: log.WithField("Module", "partitiontable"),
	}
}

// QueryPartitionTable returns one record per used table entry. Only the ESP
// and Bootable facts are authoritative here, filesystem data comes from
// other sources.
//
// go-diskfs skips empty GPT entries while reading, so the position in the
// decoded table is not the kernel partition number. GPT records carry no
// path and are matched to partitions by PARTUUID.
func (r *Reader) QueryPartitionTable(_ context.Context, disk string) ([]v1alpha1.PartitionRecord, error) {
	table, err := r.open(disk)
	if err != nil {
		return nil, err
	}

	var records []v1alpha1.PartitionRecord
	switch t := table.(type) {
	case *gpt.Table:
		for _, p := range t.Partitions {
			if p == nil || p.Type == gpt.Unused || p.GUID == "" {
				continue
			}
			partType := strings.ToLower(string(p.Type))
			records = append(records, v1alpha1.PartitionRecord{
				Size:     uint64(p.GetSize()),
				PartUUID: strings.ToLower(p.GUID),
				PartType: partType,
				ESP:      partType == v1alpha1.ESPTypeGUID,
			})
		}
	case *mbr.Table:
		for i, p := range t.Partitions {
			if p == nil || p.Type == mbrTypeEmpty {
				continue
			}
			records = append(records, v1alpha1.PartitionRecord{
				Path:     utils.PartitionPath(disk, i+1),
				Number:   i + 1,
				Size:     uint64(p.GetSize()),
				PartType: fmt.Sprintf("0x%x", byte(p.Type)),
				Bootable: p.Bootable,
				ESP:      p.Type == mbrTypeESP,
			})
		}
	default:
		return nil, fmt.Errorf("unsupported partition table %s on %s", table.Type(), disk)
	}

	r.logger.WithFields(log.Fields{"disk": disk, "table": table.Type(), "partitions": len(records)}).Debug("Read partition table")
	return records, nil
}

func readTable(device string) (partition.Table, error) {
	d, err := diskfs.Open(device, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	defer d.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("read partition table of %s: %w", device, err)
	}
	return table, nil
}
