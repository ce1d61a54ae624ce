package udev

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

type Device struct {
	// DevPath represents the disk hardware path.
	// The general format is like /devices/pci0000:00/0000:00:07.1/ata1/host1/target1:0:0/1:0:0:0/block/sdb/sdb1
	DevPath string `json:"devPath,omitempty"`

	// DevName the general format is /dev/sda
	DevName string `json:"devName,omitempty"`

	// DevType such as disk, partition
	DevType string `json:"devType,omitempty"`

	// Major represents drive used by the device
	Major string `json:"major,omitempty"`

	// Minor is used to distinguish different devices
	Minor string `json:"minor,omitempty"`

	// Bus represents the bus type of the device, such as usb, ata
	Bus string `json:"id_bus,omitempty"`

	// FSType represents the filesystem type such as ext4, ntfs
	FSType string `json:"id_fs_type,omitempty"`

	// FSUUID is the filesystem UUID
	FSUUID string `json:"id_fs_uuid,omitempty"`

	// FSLabel is the filesystem label
	FSLabel string `json:"id_fs_label,omitempty"`

	// Model represents the specific model of the storage device, usually specified by the manufacturer
	Model string `json:"id_model,omitempty"`

	// PartTableType represents the partition table type, such as gpt or dos
	PartTableType string `json:"id_part_table_type,omitempty"`

	// PartEntryNumber is the partition number inside the table
	PartEntryNumber string `json:"id_part_entry_number,omitempty"`

	// PartEntryType is the GPT type GUID or the MBR type id, e.g. 0x83
	PartEntryType string `json:"id_part_entry_type,omitempty"`

	// PartEntryFlags are the entry flags, 0x80 marks the MBR active partition
	PartEntryFlags string `json:"id_part_entry_flags,omitempty"`

	// PartEntryUUID is the PARTUUID of the entry
	PartEntryUUID string `json:"id_part_entry_uuid,omitempty"`

	// PartEntrySize in 512 byte sectors
	PartEntrySize string `json:"id_part_entry_size,omitempty"`

	// PartEntryScheme such as gpt or dos
	PartEntryScheme string `json:"id_part_entry_scheme,omitempty"`

	// Name is the name of the device node sda, sdb1, dm-0 etc
	Name string `json:"name"`

	// DevLinks is a symbolic link array for the device, containing all symbolic links for the device
	DevLinks []string `json:"devLinks"`
}

func NewDeviceWithName(devPath, devName string) *Device {
	return &Device{DevName: devName, DevPath: devPath}
}

// ParseDeviceInfo fills the device from udevadm
func (d *Device) ParseDeviceInfo(ctx context.Context, executor exechelper.Executor) error {
	info, err := d.Info(ctx, executor)
	if err != nil {
		return err
	}
	return d.ParseDiskAttribute(info)
}

// Info gets detailed information about the device using udevadm
func (d *Device) Info(ctx context.Context, executor exechelper.Executor) (map[string]interface{}, error) {
	params := exechelper.ExecParams{CmdName: "udevadm", CmdArgs: []string{"info", "--query=all"}}
	if d.DevPath != "" {
		params.CmdArgs = append(params.CmdArgs, "-p", d.DevPath)
	} else {
		params.CmdArgs = append(params.CmdArgs, "-n", d.DevName)
	}

	result := executor.RunCommand(ctx, params)
	if result.Error != nil {
		return nil, fmt.Errorf("%s: %w", params.CommandLine(), result.Error)
	}
	return parseUdevInfo(result.OutBuf.String()), nil
}

func (d *Device) ParseDiskAttribute(info map[string]interface{}) error {
	// json field matching is case-insensitive, so the lowered udev keys land
	// on the tagged fields
	lowered := make(map[string]interface{}, len(info))
	for k, v := range info {
		lowered[strings.ToLower(k)] = v
	}

	jsonStr, err := json.Marshal(lowered)
	if err != nil {
		return err
	}

	return json.Unmarshal(jsonStr, d)
}

// IsESP reports whether the partition entry type marks an EFI System Partition
func (d *Device) IsESP() bool {
	switch strings.ToLower(d.PartEntryType) {
	case "c12a7328-f81f-11d2-ba4b-00a0c93ec93b", "0xef":
		return true
	}
	return false
}

// IsBootable reports the MBR active flag
func (d *Device) IsBootable() bool {
	return d.PartEntryScheme == "dos" && strings.EqualFold(d.PartEntryFlags, "0x80")
}

func parseUdevInfo(udevInfo string) map[string]interface{} {
	udevItems := make(map[string]interface{})
	for _, info := range utils.ConvertShellOutputs(udevInfo) {
		if info == "" {
			continue
		}

		switch info[0] {
		// ENV
		case 'E':
			items := strings.SplitN(strings.Replace(info, "E: ", "", 1), "=", 2)
			if len(items) != 2 {
				continue
			}
			if items[0] == "DEVLINKS" {
				udevItems[items[0]] = strings.Split(items[1], " ")
				continue
			}
			udevItems[items[0]] = items[1]

		case 'N':
			info = strings.Replace(info, "N: ", "", 1)
			udevItems["NAME"] = info

		default:
			continue
		}
	}

	return udevItems
}
