package config

import (
	"github.com/spf13/cobra"

	bootrepairconfig "github.com/hwameistor/bootrepair/pkg/boot-repair/config"
)

var Config = &cobra.Command{
	Use:   "config",
	Args:  cobra.ExactArgs(0),
	Short: "Manage the configuration file.",
	Long:  "Manage the configuration file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Root cmd will show help only
		return cmd.Help()
	},
}

var configDefault = &cobra.Command{
	Use:     "default",
	Args:    cobra.ExactArgs(0),
	Short:   "Print the default configuration.",
	Long:    "Print the default configuration as TOML, a starting point for /etc/bootrepair/bootrepair.toml.",
	Example: "bootrepair config default > /etc/bootrepair/bootrepair.toml",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return bootrepairconfig.WriteDefault(cmd.OutOrStdout())
	},
}

func init() {
	// Config sub commands
	Config.AddCommand(configDefault)
}
