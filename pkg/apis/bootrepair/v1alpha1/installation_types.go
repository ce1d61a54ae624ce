package v1alpha1

// BootloaderKind is the bootloader detected inside an installation
type BootloaderKind = string

const (
	BootloaderGRUB        BootloaderKind = "GRUB"
	BootloaderSyslinux    BootloaderKind = "SYSLINUX"
	BootloaderSystemdBoot BootloaderKind = "systemd-boot"
	BootloaderUnknown     BootloaderKind = "unknown"
)

// FirmwareMode of the running rescue system
type FirmwareMode = string

const (
	FirmwareUEFI FirmwareMode = "UEFI"
	FirmwareBIOS FirmwareMode = "BIOS"
)

// DistroFamily selects the bootloader command set used inside a chroot
type DistroFamily = string

const (
	DistroFamilyRHEL    DistroFamily = "rhel"
	DistroFamilyDebian  DistroFamily = "debian"
	DistroFamilyGeneric DistroFamily = "generic"
)

// InstallationEvidence is what the prober found on a candidate root filesystem
type InstallationEvidence struct {
	HasFstab     bool
	HasBoot      bool
	HasEtc       bool
	HasUsr       bool
	HasRootEntry bool

	// Distribution is the human readable name from os-release or lsb-release
	Distribution string

	Bootloader BootloaderKind

	// DualBoot is set when a Windows installation likely shares the machine
	DualBoot bool
}

// Complete is true when all installation markers matched
func (e InstallationEvidence) Complete() bool {
	return e.HasFstab && e.HasBoot && e.HasEtc && e.HasUsr && e.HasRootEntry
}

// Installation is a bootable Linux root filesystem found by the discoverer
type Installation struct {
	// Partition holding the root filesystem
	Partition Partition `json:"partition"`

	// MountPath is where the installation is mounted read-write, empty until activated
	MountPath string `json:"mountPath,omitempty"`

	// Distribution name, Unknown when neither os-release nor lsb-release is readable
	Distribution string `json:"distribution"`

	// Bootloader detected in the installation
	Bootloader BootloaderKind `json:"bootloader"`

	// DualBoot is advisory: repair must preserve foreign boot entries
	DualBoot bool `json:"dualBoot"`
}

// Equal compares the identity of two installations, ignoring the mount path
func (i Installation) Equal(other Installation) bool {
	return i.Partition.Path == other.Partition.Path &&
		i.Partition.UUID == other.Partition.UUID &&
		i.Distribution == other.Distribution &&
		i.Bootloader == other.Bootloader &&
		i.DualBoot == other.DualBoot
}
