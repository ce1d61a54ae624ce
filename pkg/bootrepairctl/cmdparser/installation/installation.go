package installation

import (
	"github.com/spf13/cobra"
)

var Installation = &cobra.Command{
	Use:   "installation",
	Args:  cobra.ExactArgs(0),
	Short: "Discover the Linux installations.",
	Long:  "Discover the Linux installations. Partitions are only mounted read-only while probing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Root cmd will show help only
		return cmd.Help()
	},
}

func init() {
	// Installation sub commands
	Installation.AddCommand(installationList)
}
