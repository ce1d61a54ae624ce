package chroot

import (
	"fmt"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/config"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
)

const envEnableOSProber = "GRUB_DISABLE_OS_PROBER=false"

// InstallCommand returns the bootloader installation of the context
func InstallCommand(cfg *config.Configuration, rc *RepairContext) exechelper.ExecParams {
	name := "grub-install"
	if rc.Family == v1alpha1.DistroFamilyRHEL {
		name = "grub2-install"
	}

	var args []string
	if rc.Firmware == v1alpha1.FirmwareUEFI {
		args = []string{
			fmt.Sprintf("--target=%s", cfg.EFI.Target),
			fmt.Sprintf("--efi-directory=%s", cfg.EFI.Directory),
			fmt.Sprintf("--bootloader-id=%s", cfg.EFI.BootloaderID),
		}
	} else {
		args = []string{fmt.Sprintf("--target=%s", cfg.BIOS.Target), rc.Disk}
	}

	return exechelper.ExecParams{CmdName: name, CmdArgs: args, Timeout: cfg.Commands.TimeoutSeconds}
}

// MenuCommand returns the boot menu regeneration of the context and the
// config file it rewrites. Foreign systems are kept in the menu on dual-boot
// machines.
func MenuCommand(cfg *config.Configuration, rc *RepairContext) (exechelper.ExecParams, string) {
	var params exechelper.ExecParams
	var menu string
	switch rc.Family {
	case v1alpha1.DistroFamilyRHEL:
		menu = "/boot/grub2/grub.cfg"
		params = exechelper.ExecParams{CmdName: "grub2-mkconfig", CmdArgs: []string{"-o", menu}}
	case v1alpha1.DistroFamilyDebian:
		menu = "/boot/grub/grub.cfg"
		params = exechelper.ExecParams{CmdName: "update-grub"}
	default:
		menu = "/boot/grub/grub.cfg"
		params = exechelper.ExecParams{CmdName: "grub-mkconfig", CmdArgs: []string{"-o", menu}}
	}

	if rc.DualBoot {
		params.Env = append(params.Env, envEnableOSProber)
	}
	params.Timeout = cfg.Commands.TimeoutSeconds
	return params, menu
}
