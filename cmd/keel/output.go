package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"keel/internal/diag"
	"keel/internal/diagfmt"
	"keel/internal/observ"
	"keel/internal/source"
)

func printDiagnostics(cmd *cobra.Command, bag *diag.Bag, files *source.Files) error {
	if bag.Len() == 0 && bag.Dropped() == 0 {
		return nil
	}
	bag.Dedup()
	bag.Sort()
	format, err := cmd.Flags().GetString("diag-format")
	if err != nil {
		format = "pretty"
	}
	switch strings.ToLower(format) {
	case "json":
		return diagfmt.JSON(cmd.OutOrStdout(), bag, files, diagfmt.JSONOpts{IncludeNotes: true})
	case "pretty":
		return diagfmt.Pretty(cmd.ErrOrStderr(), bag, files, diagfmt.PrettyOpts{
			Color:     !color.NoColor,
			ShowNotes: true,
		})
	default:
		return fmt.Errorf("unsupported diagnostics format %q (must be pretty or json)", format)
	}
}

var (
	timingHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Padding(0, 1)
	timingCell   = lipgloss.NewStyle().Padding(0, 1)
	timingNumber = timingCell.Align(lipgloss.Right)
	timingFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	timingTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

// printTimings renders one input's phases as a table. Plain text is used
// when colour is off so the output stays grep-friendly.
func printTimings(out io.Writer, path string, report observ.Report) {
	if len(report.Phases) == 0 {
		return
	}
	if color.NoColor {
		fmt.Fprintf(out, "%s\n%s", path, report.Summary())
		return
	}
	rows := make([][]string, 0, len(report.Phases)+1)
	for _, p := range report.Phases {
		note := p.Note
		if note != "" {
			note = timingFailed.Render(note)
		}
		rows = append(rows, []string{p.Name, fmt.Sprintf("%.2f", p.DurationMS), note})
	}
	rows = append(rows, []string{"total", fmt.Sprintf("%.2f", report.TotalMS), ""})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("phase", "ms", "note").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return timingHeader
			case col == 1:
				return timingNumber
			}
			return timingCell
		})
	fmt.Fprintln(out, timingTitle.Render(path))
	fmt.Fprintln(out, t.Render())
}
