package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"keel/internal/diag"
	"keel/internal/driver"
	"keel/internal/ir"
	"keel/internal/observ"
)

var irCmd = &cobra.Command{
	Use:   "ir <input>",
	Short: "Print the pruned SSA IR of every function",
	Args:  cobra.ExactArgs(1),
	RunE:  irExecution,
}

func init() {
	addCompileFlags(irCmd)
}

func irExecution(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	prog, err := driver.LoadProgram(args[0])
	if err != nil {
		return err
	}
	opts := s.compileOptions()
	if s.timings {
		opts.Timer = observ.NewTimer()
	}

	res, err := driver.Compile(cmd.Context(), prog, opts)
	if err != nil {
		var ie *diag.InternalError
		if errors.As(err, &ie) {
			dumpCrashTrace(cmd.ErrOrStderr())
		}
		return err
	}
	if err := printDiagnostics(cmd, res.Bag, &prog.Files); err != nil {
		return err
	}
	if res.Unit != nil {
		if err := ir.DumpUnit(cmd.OutOrStdout(), res.Unit); err != nil {
			return err
		}
	}
	if s.timings {
		printTimings(cmd.ErrOrStderr(), args[0], opts.Timer.Report())
	}
	if res.Bag.HasErrors() {
		return fmt.Errorf("%s: compilation failed", args[0])
	}
	return nil
}
