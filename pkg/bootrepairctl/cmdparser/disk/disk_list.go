package disk

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/formatter"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/manager"
)

var showPartitions bool

var diskList = &cobra.Command{
	Use:   "list",
	Args:  cobra.ExactArgs(0),
	Short: "List the disks' infos.",
	Long: "You can use 'bootrepair disk list' to obtain information about all disks.\n" +
		"Furthermore, you can use 'bootrepair disk list --partitions' to list their partitions too.",
	Example: "bootrepair disk list\n" +
		"bootrepair disk list --partitions",
	RunE: diskListRunE,
}

func init() {
	// Disk list flags
	diskList.Flags().BoolVar(&showPartitions, "partitions", false, "List the partitions of every disk")
}

func diskListRunE(cmd *cobra.Command, _ []string) error {
	c, err := manager.NewComponents()
	if err != nil {
		return err
	}

	disks, err := c.Catalog.Enumerate(cmd.Context())
	if err != nil {
		return err
	}

	disksHeader := table.Row{"#", "DevPath", "Model", "Capacity", "Removable", "PartTable", "Partitions"}
	var disksRows []table.Row
	for i, disk := range disks {
		disksRows = append(disksRows, table.Row{i + 1, disk.Path, disk.Model, formatter.FormatBytesToSize(disk.Size),
			formatter.FormatBool(disk.Removable), disk.PartTableType, len(disk.Partitions)})
	}
	formatter.PrintTable("Disks", disksHeader, disksRows)

	if showPartitions {
		formatter.PrintTable("Partitions", PartitionHeader(), PartitionRows(disks))
	}
	return nil
}

func PartitionHeader() table.Row {
	return table.Row{"#", "DevPath", "Disk", "FSType", "Label", "Capacity", "Flags", "MountPoints"}
}

func PartitionRows(disks []v1alpha1.BlockDevice) []table.Row {
	var rows []table.Row
	index := 0
	for _, disk := range disks {
		for _, p := range disk.Partitions {
			index++
			fsType := p.FSType
			if fsType == v1alpha1.FilesystemUnknown && p.RawFSType != "" {
				fsType = p.RawFSType
			}
			rows = append(rows, table.Row{index, p.Path, p.Disk, fsType, p.Label, formatter.FormatBytesToSize(p.Size),
				partitionFlags(p), strings.Join(p.MountPoints, ",")})
		}
	}
	return rows
}

func partitionFlags(p v1alpha1.Partition) string {
	var flags []string
	if p.ESP {
		flags = append(flags, "esp")
	}
	if p.Bootable {
		flags = append(flags, "boot")
	}
	return strings.Join(flags, ",")
}
