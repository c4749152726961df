package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"keel/internal/driver"
	"keel/internal/project"
	"keel/internal/wasm"
)

// settings merges keel.toml with the command line. Flags win.
type settings struct {
	cfg            project.Config
	timings        bool
	maxDiagnostics int
	noCache        bool
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on", "always":
		color.NoColor = false
	case "off", "never":
		color.NoColor = true
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
	return nil
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	var cfg project.Config
	if path != "" {
		cfg, err = project.Load(path)
	} else {
		cfg, _, err = project.Discover(".")
	}
	if err != nil {
		return nil, err
	}

	s := &settings{cfg: cfg}
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, err
	}
	if s.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, err
	}
	if s.noCache, err = flags.GetBool("no-cache"); err != nil {
		return nil, err
	}
	if flags.Changed("jobs") {
		if s.cfg.Build.Jobs, err = flags.GetInt("jobs"); err != nil {
			return nil, err
		}
	}

	local := cmd.Flags()
	if local.Lookup("entry") != nil && local.Changed("entry") {
		s.cfg.Output.EntryExport, _ = local.GetString("entry")
	}
	if local.Lookup("min-pages") != nil && local.Changed("min-pages") {
		s.cfg.Memory.MinPages, _ = local.GetUint32("min-pages")
		if !local.Changed("max-pages") && s.cfg.Memory.MaxPages < s.cfg.Memory.MinPages {
			s.cfg.Memory.MaxPages = s.cfg.Memory.MinPages
		}
	}
	if local.Lookup("max-pages") != nil && local.Changed("max-pages") {
		s.cfg.Memory.MaxPages, _ = local.GetUint32("max-pages")
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *settings) compileOptions() driver.Options {
	return driver.Options{
		EntryExport:    s.cfg.Output.EntryExport,
		Memory:         wasm.Options{MinPages: s.cfg.Memory.MinPages, MaxPages: s.cfg.Memory.MaxPages},
		MaxDiagnostics: s.maxDiagnostics,
	}
}

// addCompileFlags registers the flags that override keel.toml per command.
func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().String("entry", "", "export name of the program entry")
	cmd.Flags().Uint32("min-pages", 0, "initial memory size in 64 KiB pages")
	cmd.Flags().Uint32("max-pages", 0, "maximum memory size in 64 KiB pages")
	cmd.Flags().String("diag-format", "pretty", "diagnostics format (pretty|json)")
}
