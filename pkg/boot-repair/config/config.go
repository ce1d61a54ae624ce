package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// DefaultConfigPath is read when no --config flag is given, a missing file means defaults
const DefaultConfigPath = "/etc/bootrepair/bootrepair.toml"

type Configuration struct {
	Session struct {
		LogDir  string `toml:"log_dir" default:"/var/log/bootrepair" validate:"required"`   // Directory receiving one log artifact per repair session
		WorkDir string `toml:"work_dir" default:"/run/bootrepair" validate:"required"`      // Base directory for probe and installation mount points
		LockDir string `toml:"lock_dir" default:"/run/bootrepair/locks" validate:"required"` // Directory holding one lock file per disk under repair
	} `toml:"session"` // Repair session settings

	Discovery struct {
		ExcludeDevices    []string `toml:"exclude_devices" default:"[\"loop*\",\"ram*\",\"zram*\",\"sr*\",\"fd*\"]" validate:"dive,required"`            // Glob patterns of kernel device names never scanned
		ProbeFilesystems  []string `toml:"probe_filesystems" default:"[\"ext2\",\"ext3\",\"ext4\",\"xfs\",\"btrfs\"]" validate:"required,dive,required"` // Filesystems mounted read-only to look for an installation
		PrestageReadWrite bool     `toml:"prestage_read_write" default:"false"`                                                                         // Mount every discovered installation read-write during discovery instead of on selection
		IncludeRemovable  bool     `toml:"include_removable" default:"true"`                                                                            // Scan removable devices too (USB disks holding an installation)
	} `toml:"discovery"` // Installation discovery settings

	EFI struct {
		MaxSizeBytes     uint64   `toml:"max_size_bytes" default:"1073741824" validate:"required"`                  // FAT partitions below this size are ESP candidates for the size heuristic
		MountConventions []string `toml:"mount_conventions" default:"[\"/boot/efi\",\"/efi\"]" validate:"dive,required"` // Mount paths identifying an already mounted ESP
		Directory        string   `toml:"directory" default:"/boot/efi" validate:"required"`                         // Where the ESP is mounted inside the installation
		BootloaderID     string   `toml:"bootloader_id" default:"GRUB" validate:"required"`                          // --bootloader-id passed to grub-install in UEFI mode
		Target           string   `toml:"target" default:"x86_64-efi" validate:"required"`                           // grub-install target in UEFI mode
		FirmwarePath     string   `toml:"firmware_path" default:"/sys/firmware/efi" validate:"required"`             // Present when the rescue system booted in UEFI mode
	} `toml:"efi"` // EFI system partition settings

	BIOS struct {
		Target string `toml:"target" default:"i386-pc" validate:"required"` // grub-install target in BIOS mode
	} `toml:"bios"` // Legacy BIOS settings

	Chroot struct {
		PseudoFilesystems []string `toml:"pseudo_filesystems" default:"[\"/dev\",\"/dev/pts\",\"/proc\",\"/sys\",\"/run\"]" validate:"required,dive,required"` // Host trees bind mounted into the installation
		DeviceMapperDir   string   `toml:"device_mapper_dir" default:"/dev/mapper" validate:"required"`                                                     // Bind mounted as well when non-empty (LVM)
		ResolvConf        string   `toml:"resolv_conf" default:"/etc/resolv.conf" validate:"required"`                                                      // Host name resolution config copied into the installation
		Shell             string   `toml:"shell" default:"/bin/bash" validate:"required"`                                                                   // Shell started by the custom action
	} `toml:"chroot"` // Chroot environment settings

	Commands struct {
		TimeoutSeconds int `toml:"timeout_seconds" default:"0" validate:"gte=0"` // Per command timeout, 0 disables it
	} `toml:"commands"` // External command settings

	Ledger struct {
		UnmountRetries       int `toml:"unmount_retries" default:"3" validate:"gte=0"`           // Extra unmount attempts for a busy mount
		UnmountRetryInterval int `toml:"unmount_retry_interval_ms" default:"500" validate:"gte=0"` // Delay between unmount attempts in milliseconds
	} `toml:"ledger"` // Rollback ledger settings

	BootFlag struct {
		SettleTimeoutSeconds int `toml:"settle_timeout_seconds" default:"10" validate:"gte=0"` // How long to wait for udev after changing a partition table
	} `toml:"boot_flag"` // Boot flag fixing settings
}

// Default returns a configuration holding only default values
func Default() (*Configuration, error) {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return cfg, nil
}

// Load reads path on top of the defaults. A missing file yields the defaults
func Load(path string) (*Configuration, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode toml: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields and ranges
func Validate(cfg *Configuration) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// WriteDefault encodes the default configuration as TOML
func WriteDefault(w io.Writer) error {
	cfg, err := Default()
	if err != nil {
		return err
	}

	encoder := toml.NewEncoder(w)
	encoder.Indent = "    "
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	return nil
}
