package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"keel/internal/driver"
	"keel/internal/ui"
)

// wantProgress resolves --progress. auto shows the view when stdout is a
// terminal and more than one input is built.
func wantProgress(cmd *cobra.Command, inputs int) (bool, error) {
	mode, err := cmd.Flags().GetString("progress")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(mode) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		f, ok := cmd.OutOrStdout().(*os.File)
		return ok && isTerminal(f) && inputs > 1, nil
	}
	return false, fmt.Errorf("invalid --progress %q (want auto|on|off)", mode)
}

type buildOutcome struct {
	results []driver.BuildResult
	err     error
}

// buildWithProgress runs BuildAll in the background while the progress view
// owns the terminal.
func buildWithProgress(ctx context.Context, cmd *cobra.Command, inputs []string, opts driver.BuildOptions) ([]driver.BuildResult, error) {
	events := make(chan driver.BuildEvent, 256)
	done := make(chan buildOutcome, 1)
	opts.Progress = driver.ChannelSink{Ch: events}
	go func() {
		results, err := driver.BuildAll(ctx, inputs, opts)
		done <- buildOutcome{results: results, err: err}
		close(events)
	}()

	title := fmt.Sprintf("building %d inputs", len(inputs))
	program := tea.NewProgram(ui.NewProgressModel(title, inputs, events), tea.WithOutput(cmd.OutOrStdout()))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: progress view: %v\n", err)
		// Keep draining so BuildAll never blocks on a full channel.
		go func() {
			for range events {
			}
		}()
	}
	out := <-done
	return out.results, out.err
}
