package cmdparser

import (
	"fmt"
	"path"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hwameistor/bootrepair/pkg/boot-repair/config"
	configcmd "github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/config"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/definitions"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/disk"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/efi"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/installation"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/repair"
)

var Bootrepair = &cobra.Command{
	Use:   "bootrepair",
	Args:  cobra.ExactArgs(0),
	Short: "Bootrepair repairs the boot configuration of Linux installations.",
	Long: "Bootrepair runs from a rescue system, discovers the Linux installations on the local disks\n" +
		"and repairs their bootloader, boot menu and boot flags without touching other systems.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Root cmd will show help only
		return cmd.Help()
	},
}

func init() {
	// Bootrepair flags
	Bootrepair.PersistentFlags().BoolVar(&definitions.Debug, "debug", false, "Enable debug mode")
	Bootrepair.PersistentFlags().StringVar(&definitions.ConfigPath, "config", config.DefaultConfigPath, "Specify the configuration file")

	// Sub commands
	Bootrepair.AddCommand(disk.Disk, installation.Installation, efi.EFI, repair.Repair, configcmd.Config)
}

func loadConfig(_ *cobra.Command, _ []string) error {
	setupLogging(definitions.Debug)

	cfg, err := config.Load(definitions.ConfigPath)
	if err != nil {
		return err
	}
	definitions.Config = cfg
	return nil
}

func setupLogging(debug bool) {
	log.SetLevel(log.WarnLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		// log with funcname, file fileds. eg: func=Build file="builder.go:43"
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			s := strings.Split(f.Function, ".")
			funcname := s[len(s)-1]
			filename := path.Base(f.File)
			return funcname, fmt.Sprintf("%s:%d", filename, f.Line)
		},
	})
}
