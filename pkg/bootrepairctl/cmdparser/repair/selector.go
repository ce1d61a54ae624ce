package repair

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/dispatcher"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/installation"
)

// promptSelector lists the installations and reads the operator's choice
type promptSelector struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptSelector(in io.Reader, out io.Writer) dispatcher.Selector {
	return &promptSelector{in: bufio.NewReader(in), out: out}
}

// Select asks until a valid index is entered, an empty answer gives up
func (p *promptSelector) Select(ctx context.Context, installations []v1alpha1.Installation) (int, error) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetTitle("Installations")
	t.AppendHeader(installation.Header())
	t.AppendRows(installation.Rows(installations))
	t.Render()

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprintf(p.out, "Select the installation to repair [1-%d]: ", len(installations))

		line, err := p.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if answer == "" {
			if err != nil {
				return 0, fmt.Errorf("read selection: %w", err)
			}
			return 0, fmt.Errorf("no installation chosen")
		}

		n, convErr := strconv.Atoi(answer)
		if convErr == nil && n >= 1 && n <= len(installations) {
			fmt.Fprintf(p.out, "Repairing %s\n", installation.Describe(installations[n-1]))
			return n, nil
		}
		fmt.Fprintf(p.out, "%q is not a valid choice\n", answer)
		if err != nil {
			return 0, fmt.Errorf("read selection: %w", err)
		}
	}
}
