package efi

import (
	"github.com/spf13/cobra"
)

var EFI = &cobra.Command{
	Use:   "efi",
	Args:  cobra.ExactArgs(0),
	Short: "Inspect the EFI system partitions.",
	Long:  "Inspect the EFI system partitions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Root cmd will show help only
		return cmd.Help()
	},
}

func init() {
	// EFI sub commands
	EFI.AddCommand(efiLocate)
}
