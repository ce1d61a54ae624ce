package efi

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/formatter"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/manager"
)

var efiLocate = &cobra.Command{
	Use:   "locate {disk}",
	Args:  cobra.ExactArgs(1),
	Short: "Locate the EFI system partition of a disk.",
	Long: "Locate the EFI system partition of a disk. The partition table is consulted first,\n" +
		"then already mounted partitions, then small FAT filesystems.",
	Example: "bootrepair efi locate /dev/sda",
	RunE:    efiLocateRunE,
}

func efiLocateRunE(cmd *cobra.Command, args []string) error {
	disk := args[0]
	if !strings.HasPrefix(disk, "/dev/") {
		disk = "/dev/" + disk
	}

	c, err := manager.NewComponents()
	if err != nil {
		return err
	}

	esp, err := c.Locator.Locate(cmd.Context(), disk)
	if err != nil {
		return err
	}
	if esp == nil {
		return fmt.Errorf("%w on %s", v1alpha1.ErrEFINotFound, disk)
	}

	formatter.PrintParameters("EFI system partition", []formatter.Parameter{
		{Key: "DevPath", Value: esp.Path},
		{Key: "FSType", Value: esp.FSType},
		{Key: "Capacity", Value: formatter.FormatBytesToSize(esp.Size)},
		{Key: "PartUUID", Value: esp.PartUUID},
		{Key: "ESP flag", Value: esp.ESP},
		{Key: "MountPoints", Value: strings.Join(esp.MountPoints, ",")},
	})
	return nil
}
