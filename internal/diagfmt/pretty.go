// Package diagfmt renders diagnostic bags for terminals and tools.
package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"keel/internal/diag"
	"keel/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	codeColor    = color.New(color.Faint)
	noteColor    = color.New(color.FgBlue)
)

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

func filePath(files *source.Files, id source.FileID, mode PathMode) string {
	path := files.Path(id)
	if mode == PathModeBasename {
		path = filepath.Base(path)
	}
	return path
}

func location(files *source.Files, sp source.Span, mode PathMode) string {
	if sp.File == source.NoFileID {
		return "<synthetic>"
	}
	return fmt.Sprintf("%s:%d-%d", filePath(files, sp.File, mode), sp.Start, sp.End)
}

// Pretty prints one line per diagnostic, in bag order:
//
//	<path>:<start>-<end>: <SEV> <CODE>: <message>
//
// followed by indented notes.
func Pretty(w io.Writer, bag *diag.Bag, files *source.Files, opts PrettyOpts) error {
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		return c.Sprint(s)
	}
	for _, d := range bag.Items() {
		if _, err := fmt.Fprintf(w, "%s: %s %s: %s\n",
			location(files, d.Primary, opts.PathMode),
			paint(severityColor(d.Severity), d.Severity.String()),
			paint(codeColor, d.Code.ID()),
			d.Message); err != nil {
			return err
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			if _, err := fmt.Fprintf(w, "  %s %s: %s\n", paint(noteColor, "note"), location(files, n.Span, opts.PathMode), n.Msg); err != nil {
				return err
			}
		}
	}
	if dropped := bag.Dropped(); dropped > 0 {
		if _, err := fmt.Fprintf(w, "... %d more diagnostics not shown\n", dropped); err != nil {
			return err
		}
	}
	return nil
}
