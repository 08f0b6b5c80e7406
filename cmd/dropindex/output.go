package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"dropindex/internal/services"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(out io.Writer, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if shouldColorize(out) {
		tw.Style().Color.Header = text.Colors{text.Bold, text.FgHiBlue}
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

type summaryView struct {
	Pass      string         `json:"pass"`
	Processed int            `json:"processed"`
	Updated   int            `json:"updated"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Reasons   map[string]int `json:"reasons,omitempty"`
}

func summaryViews(summaries []*services.Summary) []summaryView {
	views := make([]summaryView, 0, len(summaries))
	for _, s := range summaries {
		if s == nil {
			continue
		}
		reasons := make(map[string]int)
		for _, r := range s.SortedReasons() {
			reasons[r] = s.ReasonCount(r)
		}
		views = append(views, summaryView{
			Pass:      s.Pass,
			Processed: s.Processed,
			Updated:   s.Updated,
			Skipped:   s.Skipped,
			Failed:    s.Failed,
			Reasons:   reasons,
		})
	}
	return views
}

// printSummaries renders pass summaries; it still prints when runErr is set
// so partial progress is visible, then returns runErr.
func printSummaries(cmd *cobra.Command, ctx *commandContext, summaries []*services.Summary, runErr error) error {
	views := summaryViews(summaries)
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, views); err != nil {
			return err
		}
		return runErr
	}

	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.Pass,
			strconv.Itoa(v.Processed),
			strconv.Itoa(v.Updated),
			strconv.Itoa(v.Skipped),
			strconv.Itoa(v.Failed),
			formatReasons(v.Reasons),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out,
			[]string{"Pass", "Processed", "Updated", "Skipped", "Failed", "Reasons"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}
	return runErr
}

func formatReasons(reasons map[string]int) string {
	if len(reasons) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, reasons[k]))
	}
	return strings.Join(parts, " ")
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptionalPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatPrice(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
