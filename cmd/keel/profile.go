package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"keel/internal/prof"
)

// setupProfiling starts the profilers asked for by --cpu-profile,
// --mem-profile and --exec-trace. The returned cleanup may run twice.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	var paths prof.Paths
	for name, dst := range map[string]*string{
		"cpu-profile": &paths.CPU,
		"mem-profile": &paths.Heap,
		"exec-trace":  &paths.Trace,
	} {
		v, err := flags.GetString(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}
	if paths == (prof.Paths{}) {
		return func() {}, nil
	}
	session, err := prof.Start(paths)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}, nil
}
