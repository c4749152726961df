// Package driver runs the back end over typed programs: scheduling, layout,
// lowering, SSA construction and module emission.
package driver

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/layout"
	"keel/internal/lower"
	"keel/internal/mono"
	"keel/internal/observ"
	"keel/internal/sched"
	"keel/internal/ssa"
	"keel/internal/trace"
	"keel/internal/types"
	"keel/internal/wasm"
)

// Options configure one compilation.
type Options struct {
	// EntryExport is the export name of the entry function.
	EntryExport string
	Memory      wasm.Options
	// MaxDiagnostics caps the bag; 0 keeps everything.
	MaxDiagnostics int
	// Timer, when set, records one phase per pipeline step.
	Timer *observ.Timer
	// Observer, when set, is told about every phase boundary.
	Observer PhaseObserver
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		EntryExport: ir.EntryAlias,
		Memory:      wasm.DefaultOptions(),
	}
}

// Result is everything one compilation produced. Module is nil when any
// error diagnostic was reported.
type Result struct {
	Plan   *sched.Plan
	Unit   *ir.Unit
	Module []byte
	Bag    *diag.Bag
	Stats  ssa.Stats
}

// Compile runs the whole pipeline over prog. Source-level problems end up
// in Result.Bag; a broken internal invariant is returned as an
// *diag.InternalError and no module is produced.
func Compile(ctx context.Context, prog *ast.Program, opts Options) (res *Result, err error) {
	if opts.EntryExport == "" {
		opts.EntryExport = ir.EntryAlias
	}
	res = &Result{Bag: diag.NewBag(opts.MaxDiagnostics)}
	rep := diag.BagReporter{Bag: res.Bag}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "compile", trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer func() {
		detail := "ok"
		switch {
		case err != nil:
			detail = "internal error"
		case res.Bag.HasErrors():
			detail = fmt.Sprintf("%d diagnostics", res.Bag.Len())
		}
		span.End(detail)
	}()
	defer diag.RecoverInternal(&err)

	p := pipeline{ctx: ctx, tracer: tracer, parent: span.ID(), opts: &opts}

	spec := types.NewSpecializer()
	binder := mono.NewBinder(prog, spec)
	resolver := layout.New(spec)

	if err := p.phase("schedule", func(pctx context.Context) {
		res.Plan = sched.New(binder, resolver, rep, sched.Options{EntryExport: opts.EntryExport}).Run(pctx)
	}); err != nil {
		return res, err
	}
	if err := p.phase("layout", func(context.Context) {
		resolver.Resolve(rep)
	}); err != nil {
		return res, err
	}
	if res.Bag.HasErrors() {
		return res, nil
	}

	if err := p.phase("lower", func(pctx context.Context) {
		res.Unit = lower.Lower(pctx, res.Plan, binder, rep, lower.Options{EntryExport: opts.EntryExport})
	}); err != nil {
		return res, err
	}
	if res.Bag.HasErrors() {
		return res, nil
	}

	if err := p.phase("ssa", func(pctx context.Context) {
		for _, f := range res.Unit.Funcs {
			fspan := trace.Begin(tracer, trace.ScopeTask, f.Name, trace.CurrentSpan(pctx))
			st := ssa.Run(f)
			for _, b := range f.Body {
				trace.Point(tracer, trace.ScopeNode, "block", fmt.Sprintf("b%d %s", b, f.Blocks[b].Kind), fspan.ID())
			}
			res.Stats.Instrs += st.Instrs
			res.Stats.Copies += st.Copies
			res.Stats.Blocks += st.Blocks
			fspan.Attr("pruned_instrs", strconv.Itoa(st.Instrs)).
				Attr("pruned_copies", strconv.Itoa(st.Copies)).
				End("")
		}
	}); err != nil {
		return res, err
	}

	if err := p.phase("codegen", func(pctx context.Context) {
		res.Module = wasm.Emit(pctx, res.Unit, rep, opts.Memory)
	}); err != nil {
		return res, err
	}
	if res.Bag.HasErrors() {
		res.Module = nil
	}
	return res, nil
}

type pipeline struct {
	ctx    context.Context
	tracer trace.Tracer
	parent uint64
	opts   *Options
}

// phase runs fn inside a pass span and a timer phase. Cancellation is only
// observed between phases.
func (p *pipeline) phase(name string, fn func(context.Context)) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	span := trace.Begin(p.tracer, trace.ScopePass, name, p.parent)
	idx := p.opts.Timer.Begin(name)
	p.notify(name, PhaseStart, 0)
	start := time.Now()
	note := ""
	defer func() {
		p.opts.Timer.End(idx, note)
		p.notify(name, PhaseEnd, time.Since(start))
		span.End(note)
	}()
	note = "failed"
	fn(trace.WithSpan(p.ctx, span))
	note = ""
	return nil
}

func (p *pipeline) notify(name string, status PhaseStatus, elapsed time.Duration) {
	if p.opts.Observer != nil {
		p.opts.Observer(PhaseEvent{Name: name, Status: status, Elapsed: elapsed})
	}
}
