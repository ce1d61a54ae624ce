package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
)

// Result is the overall verdict of a session
type Result = string

const (
	ResultSuccess Result = "success"
	ResultPartial Result = "partial"
	ResultFatal   Result = "fatal"
)

// Exit codes of the command line
const (
	ExitSuccess = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// Summary of one repair session
type Summary struct {
	SessionID    string
	Intent       v1alpha1.RepairIntent
	Firmware     v1alpha1.FirmwareMode
	Installation *v1alpha1.Installation
	EFIPartition *v1alpha1.Partition
	Steps        []v1alpha1.StepResult
	Result       Result
	Err          error
	// LogPath of the session artifact, empty when the session had none
	LogPath string
}

// Summarize judges a finished session. err is what the dispatcher returned.
func Summarize(s *session.RepairSession, err error) Summary {
	summary := Summary{
		SessionID:    s.ID,
		Intent:       s.Intent,
		Firmware:     s.Firmware,
		Installation: s.Installation,
		EFIPartition: s.EFIPartition,
		Steps:        s.Steps(),
		Result:       ResultSuccess,
		Err:          err,
	}
	if s.Log != nil {
		summary.LogPath = s.Log.Path()
	}

	if err != nil {
		summary.Result = ResultFatal
		return summary
	}
	for _, step := range summary.Steps {
		if step.Failed() {
			summary.Result = ResultPartial
			break
		}
	}
	return summary
}

// ExitCode maps the result onto the process exit code
func (s Summary) ExitCode() int {
	switch s.Result {
	case ResultSuccess:
		return ExitSuccess
	case ResultPartial:
		return ExitPartial
	}
	return ExitFatal
}

// Render writes the summary tables to w
func (s Summary) Render(w io.Writer) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Repair session %s", s.SessionID))
	t.AppendRow(table.Row{"Action", s.Intent})
	t.AppendRow(table.Row{"Firmware", valueOr(s.Firmware, "-")})
	if s.Installation != nil {
		t.AppendRow(table.Row{"Installation", fmt.Sprintf("%s (%s)", s.Installation.Partition.Path, s.Installation.Distribution)})
		t.AppendRow(table.Row{"Bootloader", s.Installation.Bootloader})
		if s.Installation.DualBoot {
			t.AppendRow(table.Row{"Dual boot", "another operating system shares this machine, its boot entries were preserved"})
		}
	}
	if s.EFIPartition != nil {
		t.AppendRow(table.Row{"EFI partition", s.EFIPartition.Path})
	}
	t.AppendRow(table.Row{"Result", colorize(s.Result)})
	if s.Err != nil {
		t.AppendRow(table.Row{"Error", s.Err.Error()})
	}
	if s.LogPath != "" {
		t.AppendRow(table.Row{"Log", s.LogPath})
	}
	t.Render()

	if len(s.Steps) == 0 {
		return
	}
	steps := newTable(w)
	steps.SetTitle("Steps")
	steps.AppendHeader(table.Row{"#", "Step", "Outcome", "Duration", "Detail"})
	for i, step := range s.Steps {
		detail := step.Output
		if step.Err != nil {
			detail = step.Err.Error()
		}
		steps.AppendRow(table.Row{i + 1, step.Name, step.Outcome, step.Finished.Sub(step.Started).Round(time.Millisecond), firstLine(detail)})
	}
	steps.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	return t
}

func colorize(result Result) string {
	switch result {
	case ResultSuccess:
		return text.FgGreen.Sprint(result)
	case ResultPartial:
		return text.FgYellow.Sprint(result)
	}
	return text.FgRed.Sprint(result)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
