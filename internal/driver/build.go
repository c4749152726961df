package driver

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/observ"
	"keel/internal/source"
)

// BuildOptions configure BuildAll.
type BuildOptions struct {
	Compile Options
	// Jobs bounds concurrent compilations; <= 0 means GOMAXPROCS.
	Jobs int
	// Cache may be nil.
	Cache *DiskCache
	// Timings gives every input its own timer.
	Timings bool
	// Progress, when set, hears about every input as it moves through the
	// pipeline.
	Progress ProgressSink
}

// BuildResult is the outcome for one input file.
type BuildResult struct {
	Path   string
	Module []byte
	Bag    *diag.Bag
	// Files resolves the spans in Bag.
	Files  source.Files
	Cached bool
	Timing observ.Report
	// Err is set for I/O failures and internal compiler errors.
	Err error
}

// LoadProgram reads a typed AST written by ast.WriteFile.
func LoadProgram(path string) (*ast.Program, error) {
	prog, err := ast.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return prog, nil
}

// BuildAll compiles every input concurrently. Inputs share nothing, so a
// failure in one never affects the others; the returned error is only set
// when ctx is cancelled.
func BuildAll(ctx context.Context, paths []string, opts BuildOptions) ([]BuildResult, error) {
	results := make([]BuildResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	for _, path := range paths {
		emit(opts.Progress, path, "", BuildQueued)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// Each goroutine owns results[i].
			results[i] = buildOne(gctx, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func buildOne(ctx context.Context, path string, opts BuildOptions) (out BuildResult) {
	out = BuildResult{Path: path, Bag: diag.NewBag(opts.Compile.MaxDiagnostics)}
	copts := opts.Compile
	if opts.Timings {
		copts.Timer = observ.NewTimer()
	}
	defer func() {
		out.Timing = copts.Timer.Report()
		status := BuildDone
		switch {
		case out.Err != nil || out.Module == nil:
			status = BuildFailed
		case out.Cached:
			status = BuildCached
		}
		emit(opts.Progress, path, "", status)
	}()
	if opts.Progress != nil {
		inner := copts.Observer
		copts.Observer = func(ev PhaseEvent) {
			if ev.Status == PhaseStart {
				emit(opts.Progress, path, ev.Name, BuildWorking)
			}
			if inner != nil {
				inner(ev)
			}
		}
	}

	emit(opts.Progress, path, "load", BuildWorking)

	var prog *ast.Program
	if err := copts.Timer.Measure("load", func() error {
		var err error
		prog, err = LoadProgram(path)
		return err
	}); err != nil {
		out.Err = err
		return out
	}
	out.Files = prog.Files

	var key Digest
	if opts.Cache != nil {
		var err error
		if key, err = Key(prog, copts); err != nil {
			out.Err = fmt.Errorf("%s: cache key: %w", path, err)
			return out
		}
		if entry, ok, err := opts.Cache.Get(key); err == nil && ok {
			out.Module = entry.Module
			out.Cached = true
			return out
		}
	}

	res, err := Compile(ctx, prog, copts)
	if res != nil {
		out.Bag = res.Bag
	}
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", path, err)
		return out
	}
	out.Module = res.Module
	if opts.Cache != nil && res.Module != nil {
		// Cache writes are best effort.
		_ = opts.Cache.Put(key, &CachedModule{Module: res.Module, Stats: res.Stats, Created: time.Now()})
	}
	return out
}
