package formatter

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hwameistor/bootrepair/pkg/utils"
)

// ParameterTableLineLength the length for each line about parameter table
const ParameterTableLineLength = 2

// Output receives every table, tests point it at a buffer
var Output io.Writer = os.Stdout

type Parameter struct {
	Key   interface{}
	Value interface{}
}

func buildDefaultTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(Output)

	// Set the header's format
	t.Style().Format.Header = text.FormatDefault
	return t
}

func PrintParameters(title string, parameters []Parameter) {
	t := buildDefaultTable()

	if title != "" {
		t.SetTitle(title)
	}

	// Get the length of the rows
	length := len(parameters) / ParameterTableLineLength
	if len(parameters)%ParameterTableLineLength != 0 {
		length++
	}
	rows := make([]table.Row, length)

	// Parse parameter values to the table rows
	rowIndex, rowLength := 0, 0
	for _, parameter := range parameters {
		if rowLength == ParameterTableLineLength {
			// set length to 0, and switch to next row
			rowIndex, rowLength = rowIndex+1, 0
		}
		rows[rowIndex], rowLength = append(rows[rowIndex], parameter.Key, parameter.Value), rowLength+1
	}
	t.AppendRows(rows)
	t.Render()
}

func PrintTable(title string, header table.Row, rows []table.Row) {
	t := buildDefaultTable()
	// Set the table's title
	if title != "" {
		t.SetTitle(title)
	}
	// Set the table's header and rows
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
}

// FormatBytesToSize renders a byte count with a binary unit
func FormatBytesToSize(bytes uint64) string {
	return utils.ConvertBytesToStr(bytes)
}

// FormatBool renders true as "yes" and false as an empty cell
func FormatBool(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
