package installation

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/formatter"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/manager"
)

var installationList = &cobra.Command{
	Use:   "list",
	Args:  cobra.ExactArgs(0),
	Short: "List the Linux installations.",
	Long: "You can use 'bootrepair installation list' to find the installations a repair can select.\n" +
		"The first column is the index taken by 'bootrepair repair --index'.",
	Example: "bootrepair installation list",
	RunE:    installationListRunE,
}

func installationListRunE(cmd *cobra.Command, _ []string) error {
	c, err := manager.NewComponents()
	if err != nil {
		return err
	}

	installations := c.NewDiscoverer().Discover(cmd.Context())
	if len(installations) == 0 {
		return v1alpha1.ErrDiscoveryEmpty
	}

	formatter.PrintTable("Installations", Header(), Rows(installations))
	return nil
}

func Header() table.Row {
	return table.Row{"#", "Partition", "Distribution", "Bootloader", "FSType", "Capacity", "DualBoot"}
}

func Rows(installations []v1alpha1.Installation) []table.Row {
	rows := make([]table.Row, 0, len(installations))
	for i, installation := range installations {
		rows = append(rows, table.Row{i + 1, installation.Partition.Path, installation.Distribution, installation.Bootloader,
			installation.Partition.FSType, formatter.FormatBytesToSize(installation.Partition.Size), formatter.FormatBool(installation.DualBoot)})
	}
	return rows
}

// Describe renders an installation on one line
func Describe(installation v1alpha1.Installation) string {
	return fmt.Sprintf("%s (%s)", installation.Partition.Path, installation.Distribution)
}
