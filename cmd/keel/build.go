package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keel/internal/diag"
	"keel/internal/driver"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [inputs...]",
	Short: "Compile typed ASTs to WebAssembly",
	Long: `Compile msgpack typed-AST files to .wasm modules. Without inputs the
[build].roots of keel.toml are used.`,
	RunE: buildExecution,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output file (single input only)")
	buildCmd.Flags().String("progress", "auto", "interactive progress view (auto|on|off)")
	buildCmd.Flags().Bool("clear-cache", false, "remove every build cache entry before building")
	addCompileFlags(buildCmd)
}

func buildExecution(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	clearCache, err := cmd.Flags().GetBool("clear-cache")
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		if inputs, err = s.cfg.Inputs(); err != nil {
			return err
		}
	}
	if len(inputs) == 0 {
		return errors.New("no inputs: pass files or set [build].roots in keel.toml")
	}
	if output != "" && len(inputs) > 1 {
		return fmt.Errorf("-o needs exactly one input, got %d", len(inputs))
	}

	opts := driver.BuildOptions{
		Compile: s.compileOptions(),
		Jobs:    s.cfg.Build.Jobs,
		Timings: s.timings,
	}
	useCache := s.cfg.Build.Cache && !s.noCache
	if useCache || clearCache {
		cache, err := driver.OpenDiskCache("keel")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: build cache disabled: %v\n", err)
		}
		if clearCache {
			if err := cache.DropAll(); err != nil {
				return fmt.Errorf("clear build cache: %w", err)
			}
		}
		if useCache {
			opts.Cache = cache
		}
	}

	progress, err := wantProgress(cmd, len(inputs))
	if err != nil {
		return err
	}
	var results []driver.BuildResult
	if progress {
		results, err = buildWithProgress(cmd.Context(), cmd, inputs, opts)
	} else {
		results, err = driver.BuildAll(cmd.Context(), inputs, opts)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if err := printDiagnostics(cmd, r.Bag, &r.Files); err != nil {
			return err
		}
		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", r.Err)
			var ie *diag.InternalError
			if errors.As(r.Err, &ie) {
				dumpCrashTrace(cmd.ErrOrStderr())
			}
			failed++
			continue
		}
		if r.Module == nil {
			failed++
			continue
		}
		dst := output
		if dst == "" {
			dst = s.cfg.OutputPath(r.Path)
		}
		if err := writeModule(dst, r.Module); err != nil {
			return err
		}
		note := ""
		if r.Cached {
			note = " (cached)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "built %s -> %s, %d bytes%s\n", r.Path, dst, len(r.Module), note)
		if s.timings && !r.Cached {
			printTimings(cmd.ErrOrStderr(), r.Path, r.Timing)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func writeModule(path string, module []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, module, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
