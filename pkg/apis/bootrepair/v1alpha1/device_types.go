package v1alpha1

import "strings"

// Unknown is substituted for optional metadata the system doesn't report
const Unknown = "unknown"

// FilesystemKind is the classified filesystem of a partition
type FilesystemKind = string

const (
	FilesystemExt2    FilesystemKind = "ext2"
	FilesystemExt3    FilesystemKind = "ext3"
	FilesystemExt4    FilesystemKind = "ext4"
	FilesystemXFS     FilesystemKind = "xfs"
	FilesystemBtrfs   FilesystemKind = "btrfs"
	FilesystemVFAT    FilesystemKind = "vfat"
	FilesystemNTFS    FilesystemKind = "ntfs"
	FilesystemUnknown FilesystemKind = "unknown"
)

// PartTableType is the partition table scheme of a disk
type PartTableType = string

const (
	PartTableGPT     PartTableType = "gpt"
	PartTableMBR     PartTableType = "dos"
	PartTableUnknown PartTableType = ""
)

const (
	// ESPTypeGUID is the GPT partition type of an EFI System Partition
	ESPTypeGUID = "c12a7328-f81f-11d2-ba4b-00a0c93ec93b"
	// ESPTypeMBR is the MBR partition type id of an EFI System Partition
	ESPTypeMBR = "0xef"
)

// ClassifyFilesystem maps a blkid/lsblk filesystem name onto a FilesystemKind
func ClassifyFilesystem(raw string) FilesystemKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ext2":
		return FilesystemExt2
	case "ext3":
		return FilesystemExt3
	case "ext4":
		return FilesystemExt4
	case "xfs":
		return FilesystemXFS
	case "btrfs":
		return FilesystemBtrfs
	case "vfat", "fat", "fat12", "fat16", "fat32", "msdos":
		return FilesystemVFAT
	case "ntfs", "ntfs3", "ntfs-3g":
		return FilesystemNTFS
	}
	return FilesystemUnknown
}

// IsLinuxFilesystem returns true for the filesystems a Linux root can live on
func IsLinuxFilesystem(kind FilesystemKind) bool {
	switch kind {
	case FilesystemExt2, FilesystemExt3, FilesystemExt4, FilesystemXFS, FilesystemBtrfs:
		return true
	}
	return false
}

// BlockDevice is a whole disk as seen by one scan. It is never persisted
type BlockDevice struct {
	// Path represents the device node, e.g. /dev/sda
	Path string `json:"path"`

	// Name is the kernel name of the device, e.g. sda, nvme0n1
	Name string `json:"name"`

	// Size in bytes
	Size uint64 `json:"size"`

	// Model is reported by the device, Unknown when absent
	Model string `json:"model"`

	// Removable is true for USB sticks, card readers and the like
	Removable bool `json:"removable"`

	// PartTableType such as gpt or dos
	PartTableType PartTableType `json:"partTableType,omitempty"`

	// Partitions ordered by partition number
	Partitions []Partition `json:"partitions,omitempty"`
}

// Partition belongs to exactly one BlockDevice and is an immutable snapshot per scan
type Partition struct {
	// Path represents the partition node, e.g. /dev/sda1
	Path string `json:"path"`

	// Name is the kernel name of the partition, e.g. sda1
	Name string `json:"name"`

	// Disk is the path of the owning BlockDevice
	Disk string `json:"disk"`

	// Number is the 1-based partition index, 0 when unknown
	Number int `json:"number"`

	// Size in bytes
	Size uint64 `json:"size"`

	// FSType is the classified filesystem
	FSType FilesystemKind `json:"fsType"`

	// RawFSType is the filesystem name as reported by the system, e.g. LVM2_member
	RawFSType string `json:"rawFSType,omitempty"`

	// Label of the filesystem, Unknown when absent
	Label string `json:"label"`

	// UUID of the filesystem
	UUID string `json:"uuid,omitempty"`

	// PartUUID of the partition table entry
	PartUUID string `json:"partUUID,omitempty"`

	// PartType is the GPT type GUID or the MBR type id (0x83, 0xef, ...)
	PartType string `json:"partType,omitempty"`

	// Bootable is the legacy BIOS boot flag (MBR active flag)
	Bootable bool `json:"bootable"`

	// ESP is true when the partition table marks the partition as an EFI System Partition
	ESP bool `json:"esp"`

	// MountPoints where the partition is currently mounted
	MountPoints []string `json:"mountPoints,omitempty"`
}

// Mounted reports whether the partition was mounted at scan time
func (p Partition) Mounted() bool {
	return len(p.MountPoints) > 0
}

// PartitionRecord is one row returned by a partition table query
type PartitionRecord struct {
	Path       string
	Number     int
	Size       uint64
	FSType     string
	Label      string
	UUID       string
	PartUUID   string
	PartType   string
	PartFlags  string
	Bootable   bool
	ESP        bool
	MountPoint string
}

// Describes reports whether r is the record of partition p. A record without
// a path only knows its table entry and is matched by PARTUUID.
func (r PartitionRecord) Describes(p Partition) bool {
	if r.Path != "" {
		return r.Path == p.Path
	}
	return r.PartUUID != "" && strings.EqualFold(r.PartUUID, p.PartUUID)
}

// Merge fills the zero fields of r with the ones from other
func (r PartitionRecord) Merge(other PartitionRecord) PartitionRecord {
	if r.Path == "" {
		r.Path = other.Path
	}
	if r.Number == 0 {
		r.Number = other.Number
	}
	if r.Size == 0 {
		r.Size = other.Size
	}
	if r.FSType == "" {
		r.FSType = other.FSType
	}
	if r.Label == "" {
		r.Label = other.Label
	}
	if r.UUID == "" {
		r.UUID = other.UUID
	}
	if r.PartUUID == "" {
		r.PartUUID = other.PartUUID
	}
	if r.PartType == "" {
		r.PartType = other.PartType
	}
	if r.PartFlags == "" {
		r.PartFlags = other.PartFlags
	}
	if r.MountPoint == "" {
		r.MountPoint = other.MountPoint
	}
	r.Bootable = r.Bootable || other.Bootable
	r.ESP = r.ESP || other.ESP
	return r
}
