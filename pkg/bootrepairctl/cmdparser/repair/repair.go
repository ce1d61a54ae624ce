package repair

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/dispatcher"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/report"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/definitions"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/manager"
)

var (
	action      = intentValue(v1alpha1.IntentAuto)
	index       int
	timeout     time.Duration
	interactive bool
)

var Repair = &cobra.Command{
	Use:   "repair",
	Args:  cobra.ExactArgs(0),
	Short: "Repair the boot configuration of an installation.",
	Long: "Repair the boot configuration of an installation. Actions:\n" +
		"  auto        install the bootloader, regenerate the boot menu and check the boot flag\n" +
		"  bootloader  install the bootloader inside the installation\n" +
		"  mbr         write the BIOS boot code to the disk from the rescue system\n" +
		"  menu        regenerate the boot menu, other systems' entries are kept\n" +
		"  flags       make sure a partition carries the boot flag\n" +
		"  custom      open a shell inside the installation\n" +
		"Everything mounted or changed on the way is rolled back before the command returns.\n" +
		"Exit codes: 0 success, 1 failure, 2 partial success.",
	Example: "bootrepair repair\n" +
		"bootrepair repair --action menu --index 2\n" +
		"bootrepair repair --action bootloader --timeout 10m",
	RunE: repairRunE,
}

func init() {
	// Repair flags
	Repair.Flags().Var(&action, "action", fmt.Sprintf("Repair action, one of %s", strings.Join(v1alpha1.AllIntents, ", ")))
	Repair.Flags().IntVar(&index, "index", 0, "1-based installation index as listed by 'bootrepair installation list'")
	Repair.Flags().DurationVar(&timeout, "timeout", 0, "Abort and roll back after this duration, 0 waits forever")
	Repair.Flags().BoolVar(&interactive, "interactive", false, "Ask which installation to repair when more than one is found")
}

func repairRunE(cmd *cobra.Command, _ []string) error {
	intent := action.String()
	if index < 0 {
		return fmt.Errorf("%w: index %d", v1alpha1.ErrNoSelection, index)
	}

	c, err := manager.NewComponents()
	if err != nil {
		return err
	}

	s, err := c.NewSession(intent, os.Stderr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	d := c.NewDispatcher(s)
	if interactive {
		d.WithSelector(NewPromptSelector(os.Stdin, cmd.OutOrStdout()))
	}

	runErr := d.Run(ctx, s, dispatcher.Request{Intent: intent, Index: index})
	if closeErr := s.Close(); closeErr != nil {
		s.Logger().WithError(closeErr).Error("Failed to close repair session")
		if runErr == nil {
			runErr = fmt.Errorf("%w: %v", v1alpha1.ErrUnwindFailed, closeErr)
		}
	}

	summary := report.Summarize(s, runErr)
	summary.Render(cmd.OutOrStdout())
	if s.Log != nil {
		_ = s.Log.Close()
	}

	if code := summary.ExitCode(); code != report.ExitSuccess {
		return &definitions.ExitError{Code: code, Err: runErr}
	}
	return nil
}
