// Package output renders the OSNMA authentication status for the CLI.
package output

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"osnma/engine"
	"osnma/gst"
)

// Color styles
var (
	colorHeader  = text.Colors{text.FgCyan, text.Bold}
	colorLabel   = text.Colors{text.FgYellow}
	colorSuccess = text.Colors{text.FgGreen}
)

// getTableStyle returns the default table style
func getTableStyle() table.Style {
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Color.Row = text.Colors{text.FgWhite}
	style.Color.RowAlternate = text.Colors{text.FgHiWhite}
	style.Options.SeparateRows = false
	return style
}

// newTable creates a new table writer with default settings
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(getTableStyle())
	return t
}

// PrintStatus prints a table with the authenticated navigation data
// available per satellite. Satellites with no authenticated data at all
// are omitted.
func PrintStatus(eng *engine.Osnma) {
	t := newTable()
	t.SetTitle("OSNMA AUTHENTICATION STATUS")
	t.AppendHeader(table.Row{"SVN", "CED bits", "CED GST", "Timing bits", "Timing GST"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel},
		{Number: 2, Colors: colorSuccess},
		{Number: 4, Colors: colorSuccess},
	})

	rows := 0
	for _, svn := range gst.AllSvns() {
		cedBits, cedGst := "-", "-"
		timingBits, timingGst := "-", "-"
		any := false
		if data, ok := eng.GetCedAndStatus(svn); ok {
			cedBits = fmt.Sprintf("%d", data.Authbits())
			cedGst = data.Gst().String()
			any = true
		}
		if data, ok := eng.GetTimingParameters(svn); ok {
			timingBits = fmt.Sprintf("%d", data.Authbits())
			timingGst = data.Gst().String()
			any = true
		}
		if !any {
			continue
		}
		t.AppendRow(table.Row{svn.String(), cedBits, cedGst, timingBits, timingGst})
		rows++
	}
	if rows == 0 {
		fmt.Println("No authenticated navigation data yet.")
		return
	}
	t.Render()
}
