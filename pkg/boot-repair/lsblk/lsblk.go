package lsblk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

const (
	PartType = "part"
	DiskType = "disk"
)

// columns requested from lsblk, MOUNTPOINTS is only known to util-linux >= 2.37
// so MOUNTPOINT is asked for as well
var columns = []string{
	"NAME", "PATH", "TYPE", "SIZE", "MODEL", "RM", "PTTYPE",
	"FSTYPE", "LABEL", "UUID", "PARTUUID", "PARTTYPE", "PARTFLAGS", "MOUNTPOINT",
}

type LSBlk struct {
	executor exechelper.Executor
	// sysfsBlockDir is where partition indices are read from
	sysfsBlockDir string
	logger        *log.Entry
}

func New(executor exechelper.Executor) *LSBlk {
	return &LSBlk{
		executor:      executor,
		sysfsBlockDir: "/sys/class/block",
		logger:        log.WithField("Module", "lsblk"),
	}
}

// ListDisks returns every whole disk with its partitions
func (lsb *LSBlk) ListDisks(ctx context.Context) ([]v1alpha1.BlockDevice, error) {
	result, err := lsb.run(ctx)
	if err != nil {
		return nil, err
	}

	var disks []v1alpha1.BlockDevice
	result.Get("blockdevices").ForEach(func(_, device gjson.Result) bool {
		if device.Get("type").String() != DiskType {
			return true
		}
		disks = append(disks, lsb.parseDisk(device))
		return true
	})

	return disks, nil
}

// QueryPartitionTable returns the partitions lsblk reports for disk
func (lsb *LSBlk) QueryPartitionTable(ctx context.Context, disk string) ([]v1alpha1.PartitionRecord, error) {
	disks, err := lsb.ListDisks(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range disks {
		if d.Path != disk {
			continue
		}
		var records []v1alpha1.PartitionRecord
		for _, p := range d.Partitions {
			record := v1alpha1.PartitionRecord{
				Path:     p.Path,
				Number:   p.Number,
				Size:     p.Size,
				FSType:   p.RawFSType,
				UUID:     p.UUID,
				PartUUID: p.PartUUID,
				PartType: p.PartType,
				ESP:      p.ESP,
			}
			if p.Label != v1alpha1.Unknown {
				record.Label = p.Label
			}
			if len(p.MountPoints) > 0 {
				record.MountPoint = p.MountPoints[0]
			}
			records = append(records, record)
		}
		return records, nil
	}

	return nil, fmt.Errorf("disk %s not reported by lsblk", disk)
}

func (lsb *LSBlk) run(ctx context.Context) (gjson.Result, error) {
	params := exechelper.ExecParams{
		CmdName: "lsblk",
		CmdArgs: []string{"-J", "-b", "-o", strings.Join(columns, ",")},
	}
	res := lsb.executor.RunCommand(ctx, params)
	if res.Error != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", params.CommandLine(), res.Error)
	}

	out := res.OutBuf.String()
	if !gjson.Valid(out) {
		return gjson.Result{}, fmt.Errorf("invalid json output of %s", params.CommandLine())
	}
	return gjson.Parse(out), nil
}

func (lsb *LSBlk) parseDisk(device gjson.Result) v1alpha1.BlockDevice {
	name := device.Get("name").String()
	disk := v1alpha1.BlockDevice{
		Path:          devicePath(device),
		Name:          name,
		Size:          device.Get("size").Uint(),
		Model:         strings.TrimSpace(device.Get("model").String()),
		Removable:     device.Get("rm").Bool(),
		PartTableType: device.Get("pttype").String(),
	}
	if disk.Model == "" {
		disk.Model = v1alpha1.Unknown
	}

	device.Get("children").ForEach(func(_, child gjson.Result) bool {
		if child.Get("type").String() != PartType {
			return true
		}
		disk.Partitions = append(disk.Partitions, lsb.parsePartition(disk.Path, child))
		return true
	})

	return disk
}

func (lsb *LSBlk) parsePartition(disk string, child gjson.Result) v1alpha1.Partition {
	raw := child.Get("fstype").String()
	partition := v1alpha1.Partition{
		Path:        devicePath(child),
		Name:        child.Get("name").String(),
		Disk:        disk,
		Size:        child.Get("size").Uint(),
		FSType:      v1alpha1.ClassifyFilesystem(raw),
		RawFSType:   raw,
		Label:       child.Get("label").String(),
		UUID:        child.Get("uuid").String(),
		PartUUID:    child.Get("partuuid").String(),
		PartType:    strings.ToLower(child.Get("parttype").String()),
		MountPoints: mountPoints(child),
	}
	if partition.Label == "" {
		partition.Label = v1alpha1.Unknown
	}
	partition.ESP = partition.PartType == v1alpha1.ESPTypeGUID || partition.PartType == v1alpha1.ESPTypeMBR

	number, err := utils.ReadSysFSFileAsInt64(filepath.Join(lsb.sysfsBlockDir, partition.Name, "partition"))
	if err != nil {
		partition.Number = utils.PartitionNumber(partition.Name)
	} else {
		partition.Number = int(number)
	}

	return partition
}

// devicePath prefers the PATH column and falls back to /dev/NAME on old lsblk
func devicePath(device gjson.Result) string {
	if path := device.Get("path").String(); path != "" {
		return path
	}
	return "/dev/" + device.Get("name").String()
}

func mountPoints(device gjson.Result) []string {
	var result []string
	device.Get("mountpoints").ForEach(func(_, mp gjson.Result) bool {
		if mp.Type != gjson.Null && mp.String() != "" {
			result = append(result, mp.String())
		}
		return true
	})
	if len(result) == 0 {
		if mp := device.Get("mountpoint").String(); mp != "" {
			result = append(result, mp)
		}
	}
	return result
}
