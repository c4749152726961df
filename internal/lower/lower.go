// Package lower turns scheduled tasks into IR functions: structured block
// trees over per-function variables.
package lower

import (
	"context"
	"fmt"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/mono"
	"keel/internal/sched"
	"keel/internal/trace"
	"keel/internal/types"
)

// Options configure lowering.
type Options struct {
	EntryExport string
}

type lowerer struct {
	prog   *ast.Program
	binder *mono.Binder
	spec   *types.Specializer
	unit   *ir.Unit
	rep    diag.Reporter
	plan   *sched.Plan

	globals map[ast.DeclID]int
	// literals already checked for NFC, so generic bodies warn once
	checked map[ast.ExprID]bool
}

// Lower builds the compilation unit for plan. Diagnostics go to rep;
// broken invariants panic with *diag.InternalError.
func Lower(ctx context.Context, plan *sched.Plan, binder *mono.Binder, rep diag.Reporter, opts Options) *ir.Unit {
	if opts.EntryExport == "" {
		opts.EntryExport = ir.EntryAlias
	}
	l := &lowerer{
		prog:    binder.Prog,
		binder:  binder,
		spec:    binder.Spec,
		unit:    ir.NewUnit(),
		rep:     rep,
		plan:    plan,
		globals: make(map[ast.DeclID]int),
		checked: make(map[ast.ExprID]bool),
	}
	l.unit.Entry = ir.EntryFunc
	l.unit.EntryExport = opts.EntryExport

	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx)

	for _, id := range l.prog.DeclIDs() {
		d := l.prog.Decl(id)
		if d.Kind != ast.DeclGlobal {
			continue
		}
		t := l.spec.Get(l.binder.Resolve(d.Global.Type, nil))
		l.globals[id] = l.unit.AddGlobal(ir.GlobalVar{Name: d.Name, Size: t.ValueSize(), Mutable: d.Global.Mutable})
	}
	// Table order follows discovery order, not first reference.
	for _, t := range plan.Tasks {
		if t.Indirect {
			l.unit.TableSlot(t.Name)
		}
	}
	for _, t := range plan.Tasks {
		if !t.Emits() {
			continue
		}
		trace.Point(tracer, trace.ScopeTask, "lower", t.Name, parent)
		l.task(t)
	}
	if plan.NeedsAlloc {
		l.unit.Funcs = append(l.unit.Funcs, allocFunction())
	}
	return l.unit
}

func (l *lowerer) task(t *sched.Task) {
	if t.Kind == sched.TaskEntry {
		c := l.newFn(t, ir.EntryFunc, nil, types.Void)
		c.f.Export = l.unit.EntryExport
		c.entry()
		l.unit.Funcs = append(l.unit.Funcs, c.f)
		return
	}
	d := l.prog.Decl(t.Decl)
	if d == nil || d.Func == nil {
		diag.Internalf("lower: task %s has no function declaration", t.Name)
	}
	scope := sched.Scope(l.spec, t)
	if d.Has(ast.DecForeign) {
		l.foreign(t, d, scope)
		return
	}
	result := l.binder.Resolve(d.Func.Result, scope)
	if d.Func.Kind == ast.FuncConstructor {
		result = t.Owner
	}
	c := l.newFn(t, t.Name, d, result)
	c.f.InTable = t.Indirect
	c.f.Inline = d.Has(ast.DecInline)
	if exp, ok := d.Decorator(ast.DecExport); ok && d.Func.Kind == ast.FuncPlain {
		c.f.Export = sched.ExportName(d, exp)
	}
	c.body(d)
	l.unit.Funcs = append(l.unit.Funcs, c.f)
}

// signature flattens parameter and result types into native prims. Only
// the first result slot is native; the rest travel through scratch memory.
func (l *lowerer) signature(params []types.Handle, result types.Handle) ir.Signature {
	var sig ir.Signature
	for _, p := range params {
		sig.Params = append(sig.Params, l.spec.Get(p).Slots()...)
	}
	if rs := l.spec.Get(result).Slots(); len(rs) > 0 {
		sig.Result = rs[0]
	}
	return sig
}

func (l *lowerer) foreign(t *sched.Task, d *ast.Decl, scope []types.Handle) {
	params := make([]types.Handle, 0, len(d.Func.Params))
	for _, p := range d.Func.Params {
		params = append(params, l.binder.Resolve(d.Func.Locals[p].Type, scope))
	}
	result := l.binder.Resolve(d.Func.Result, scope)
	if n := l.spec.Get(result).SlotCount(); n > 1 {
		diag.ReportError(l.rep, diag.LowerUnsupported, d.Span,
			fmt.Sprintf("foreign function %s cannot return a %d-slot value", d.Name, n)).Emit()
	}
	l.unit.Imports = append(l.unit.Imports, &ir.Import{
		Name:    t.Name,
		Symbol:  sched.ForeignSymbol(d),
		Sig:     l.signature(params, result),
		InTable: t.Indirect,
	})
}

// allocFunction builds the bump allocator:
//
//	p = heap_ptr; heap_ptr = (p + size + 7) &^ 7; return p
func allocFunction() *ir.Function {
	f := ir.NewFunction(ir.AllocFunc, []types.Prim{types.PtrPrim}, types.PtrPrim)
	b := f.NewBlock(ir.BlockBasic)
	f.Body = []ir.BlockID{b.ID}
	size := ir.Var(0)
	p := f.NewVar(types.PtrPrim)
	end := f.NewVar(types.PtrPrim)
	seven := f.NewVar(types.PtrPrim)
	padded := f.NewVar(types.PtrPrim)
	mask := f.NewVar(types.PtrPrim)
	next := f.NewVar(types.PtrPrim)
	b.Instrs = []ir.Instr{
		{Op: ir.OpGlobalGet, Dst: []ir.Var{p}, Callee: ir.HeapPtr, Storage: types.PtrPrim},
		{Op: ir.OpAdd, Dst: []ir.Var{end}, Args: []ir.Var{p, size}, Storage: types.PtrPrim},
		{Op: ir.OpConst, Dst: []ir.Var{seven}, Imm: 7, Storage: types.PtrPrim},
		{Op: ir.OpAdd, Dst: []ir.Var{padded}, Args: []ir.Var{end, seven}, Storage: types.PtrPrim},
		{Op: ir.OpConst, Dst: []ir.Var{mask}, Imm: -8, Storage: types.PtrPrim},
		{Op: ir.OpAnd, Dst: []ir.Var{next}, Args: []ir.Var{padded, mask}, Storage: types.PtrPrim},
		{Op: ir.OpGlobalSet, Args: []ir.Var{next}, Callee: ir.HeapPtr, Storage: types.PtrPrim},
		{Op: ir.OpReturn, Args: []ir.Var{p}},
	}
	return f
}
