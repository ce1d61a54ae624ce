package disk

import (
	"github.com/spf13/cobra"
)

var Disk = &cobra.Command{
	Use:   "disk",
	Args:  cobra.ExactArgs(0),
	Short: "Inspect the block devices.",
	Long:  "Inspect the block devices and their partitions. Nothing is mounted or modified.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Root cmd will show help only
		return cmd.Help()
	},
}

func init() {
	// Disk sub commands
	Disk.AddCommand(diskList)
}
