// Package sched discovers which functions and type layouts a program needs,
// starting from its exports, explicit roots and entry.
package sched

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/layout"
	"keel/internal/mono"
	"keel/internal/trace"
	"keel/internal/types"
)

// Options tune seeding.
type Options struct {
	// EntryExport is the export name of the program entry; it must not be
	// claimed by a user export.
	EntryExport string
}

// Plan is the ordered result of scheduling.
type Plan struct {
	// Tasks in discovery order; this fixes function emission order.
	Tasks []*Task
	Entry *Task
	// Layouts lists aggregates in layout registration order.
	Layouts []types.Handle
	// NeedsAlloc is set when some task allocates on the heap.
	NeedsAlloc bool
	// Exports maps export names to their declarations.
	Exports map[string]ast.DeclID
}

// Scheduler runs the reachability worklist over one program.
type Scheduler struct {
	prog     *ast.Program
	binder   *mono.Binder
	spec     *types.Specializer
	resolver *layout.Resolver
	rep      diag.Reporter
	opts     Options

	tracer trace.Tracer
	parent uint64

	finished map[string]*Task
	order    []*Task
	work     []*Task
	required map[types.Handle]bool
	exports  map[string]ast.DeclID
	badDecls map[ast.DeclID]bool
	alloc    bool
}

func New(binder *mono.Binder, resolver *layout.Resolver, rep diag.Reporter, opts Options) *Scheduler {
	if opts.EntryExport == "" {
		opts.EntryExport = ir.EntryAlias
	}
	return &Scheduler{
		prog:     binder.Prog,
		binder:   binder,
		spec:     binder.Spec,
		resolver: resolver,
		rep:      rep,
		opts:     opts,
		tracer:   trace.Nop,
		finished: make(map[string]*Task),
		required: make(map[types.Handle]bool),
		exports:  make(map[string]ast.DeclID),
		badDecls: make(map[ast.DeclID]bool),
	}
}

// Run seeds the worklist and drains it. Layouts of the required aggregates
// are registered with the resolver but left for the caller to resolve.
func (s *Scheduler) Run(ctx context.Context) *Plan {
	s.tracer = trace.FromContext(ctx)
	s.parent = trace.CurrentSpan(ctx)

	entry := s.push(TaskEntry, ast.NoDeclID, types.Void, nil, false)
	s.checkDecls()
	s.seed()
	for len(s.work) > 0 {
		t := s.work[len(s.work)-1]
		s.work = s.work[:len(s.work)-1]
		trace.Point(s.tracer, trace.ScopeTask, "schedule", t.Kind.String()+" "+t.Name, s.parent)
		s.process(t)
	}
	return &Plan{
		Tasks:      s.order,
		Entry:      entry,
		Layouts:    s.resolver.Types(),
		NeedsAlloc: s.alloc,
		Exports:    s.exports,
	}
}

// checkDecls validates decorators on every function, reachable or not.
func (s *Scheduler) checkDecls() {
	for _, id := range s.prog.DeclIDs() {
		d := s.prog.Decl(id)
		if d.Kind != ast.DeclFunc {
			continue
		}
		if dec, ok := d.Decorator(ast.DecForeign); ok {
			if d.Func.HasBody {
				s.bad(id, diag.SchedForeignBody, fmt.Sprintf("foreign function %s must not have a body", d.Name))
			} else if dec.Arg == "" && d.Name == "" {
				s.bad(id, diag.SchedBadNative, "foreign function needs a symbol")
			}
		}
		if d.Has(ast.DecNative) {
			name := NativeName(d)
			switch {
			case d.Func.HasBody:
				s.bad(id, diag.SchedNativeBody, fmt.Sprintf("native function %s must not have a body", d.Name))
			case !ir.IsIntrinsic(name):
				s.bad(id, diag.SchedBadNative, fmt.Sprintf("unknown native intrinsic %q", name))
			}
		}
	}
}

func (s *Scheduler) bad(id ast.DeclID, code diag.Code, msg string) {
	s.badDecls[id] = true
	diag.ReportError(s.rep, code, s.prog.Decl(id).Span, msg).Emit()
}

func (s *Scheduler) isRoot(id ast.DeclID) bool {
	for _, r := range s.prog.Roots {
		if r == id {
			return true
		}
	}
	return false
}

// seed pushes exported and explicitly compiled top-level functions.
func (s *Scheduler) seed() {
	for _, id := range s.prog.DeclIDs() {
		d := s.prog.Decl(id)
		if d.Kind != ast.DeclFunc || d.Func.Kind != ast.FuncPlain {
			continue
		}
		exp, exported := d.Decorator(ast.DecExport)
		if !exported && !d.Has(ast.DecCompile) && !s.isRoot(id) {
			continue
		}
		if d.IsGeneric() {
			diag.ReportError(s.rep, diag.SchedExportGeneric, d.Span,
				fmt.Sprintf("generic function %s cannot be exported or compiled without type arguments", d.Name)).
				WithNote(d.Span, "call it from a non-generic wrapper instead").
				Emit()
			continue
		}
		if s.badDecls[id] || d.Has(ast.DecNative) {
			continue
		}
		if exported {
			s.claimExport(id, ExportName(d, exp))
		}
		s.push(TaskFunc, id, types.Void, nil, false)
	}
}

func (s *Scheduler) claimExport(id ast.DeclID, name string) {
	d := s.prog.Decl(id)
	if !validExportName(name) || name == "memory" || name == s.opts.EntryExport {
		diag.ReportError(s.rep, diag.SchedBadExportName, d.Span,
			fmt.Sprintf("invalid export name %q", name)).Emit()
		return
	}
	if prev, dup := s.exports[name]; dup {
		diag.ReportError(s.rep, diag.SchedDuplicateExport, d.Span,
			fmt.Sprintf("export name %q is already used", name)).
			WithNote(s.prog.Decl(prev).Span, "first exported here").
			Emit()
		return
	}
	s.exports[name] = id
}

func validExportName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ExportName is the decorator argument or, when empty, the declaration name.
func ExportName(d *ast.Decl, dec ast.Decorator) string {
	if dec.Arg != "" {
		return dec.Arg
	}
	return d.Name
}

// NativeName is the intrinsic a native declaration maps to.
func NativeName(d *ast.Decl) string {
	if dec, ok := d.Decorator(ast.DecNative); ok && dec.Arg != "" {
		return dec.Arg
	}
	return d.Name
}

// ForeignSymbol is the host symbol a foreign declaration imports.
func ForeignSymbol(d *ast.Decl) string {
	if dec, ok := d.Decorator(ast.DecForeign); ok && dec.Arg != "" {
		return dec.Arg
	}
	return d.Name
}

// push deduplicates by structure; an existing task only gains the indirect
// flag.
func (s *Scheduler) push(kind Kind, decl ast.DeclID, owner types.Handle, args []types.Handle, indirect bool) *Task {
	key := taskKey(kind, decl, owner, args)
	if t, ok := s.finished[key]; ok {
		t.Indirect = t.Indirect || indirect
		return t
	}
	t := &Task{Kind: kind, Decl: decl, Owner: owner, Args: args, Indirect: indirect}
	t.Name = s.name(t)
	s.finished[key] = t
	s.order = append(s.order, t)
	s.work = append(s.work, t)
	return t
}

func (s *Scheduler) name(t *Task) string {
	switch t.Kind {
	case TaskEntry:
		return ir.EntryFunc
	case TaskLayout:
		return s.spec.Name(t.Owner)
	case TaskFunc:
		return FuncName(s.binder, t.Decl, t.Args)
	case TaskMethod, TaskOperator, TaskConstructor:
		return MemberName(s.binder, t.Owner, t.Decl)
	}
	return "task?"
}

// Scope returns the generic arguments visible inside task t.
func Scope(spec *types.Specializer, t *Task) []types.Handle {
	switch t.Kind {
	case TaskMethod, TaskOperator, TaskConstructor:
		return spec.Args(t.Owner)
	case TaskFunc, TaskLayout, TaskEntry:
	}
	return t.Args
}

// require makes sure every aggregate reachable through h gets laid out.
func (s *Scheduler) require(h types.Handle) {
	if h == types.Void || s.required[h] {
		return
	}
	s.required[h] = true
	switch s.spec.KindOf(h) {
	case types.KindStruct, types.KindClass:
		s.push(TaskLayout, ast.NoDeclID, h, nil, false)
	case types.KindPointer:
		s.require(s.spec.Get(h).Elem)
	case types.KindFunc:
		ft := s.spec.Get(h)
		for _, p := range ft.Params {
			s.require(p)
		}
		s.require(ft.Result)
	case types.KindVoid, types.KindPrimitive:
	}
}

func (s *Scheduler) process(t *Task) {
	switch t.Kind {
	case TaskLayout:
		s.resolver.Add(t.Owner)
		for _, m := range s.spec.Get(t.Owner).Members {
			s.require(m.Type)
		}
	case TaskEntry:
		w := &walker{s: s}
		for _, id := range s.prog.DeclIDs() {
			d := s.prog.Decl(id)
			if d.Kind != ast.DeclGlobal {
				continue
			}
			s.require(w.resolve(d.Global.Type))
			ast.WalkExpr(s.prog, d.Global.Init, w)
		}
		w.locals(s.prog.MainLocals)
		ast.WalkStmts(s.prog, s.prog.Main, w)
	case TaskFunc, TaskMethod, TaskOperator, TaskConstructor:
		d := s.prog.Decl(t.Decl)
		if d == nil || d.Func == nil {
			diag.Internalf("task %s: declaration %d is not a function", t.Name, t.Decl)
		}
		w := &walker{s: s, scope: Scope(s.spec, t)}
		s.require(t.Owner)
		s.require(w.resolve(d.Func.Result))
		w.locals(d.Func.Locals)
		if d.Func.Kind == ast.FuncConstructor && s.spec.KindOf(t.Owner) == types.KindClass {
			s.alloc = true
		}
		if d.Func.HasBody {
			ast.WalkStmts(s.prog, d.Func.Body, w)
		}
	}
}

type walker struct {
	ast.BaseVisitor
	s     *Scheduler
	scope []types.Handle
}

func (w *walker) resolve(t ast.TypeID) types.Handle {
	return w.s.binder.Resolve(t, w.scope)
}

func (w *walker) locals(ls []ast.Local) {
	for _, l := range ls {
		w.s.require(w.resolve(l.Type))
	}
}

func (w *walker) VisitExpr(_ ast.ExprID, e *ast.Expr) bool {
	w.s.require(w.resolve(e.Type))
	return true
}

func (w *walker) Call(_ ast.ExprID, e *ast.Expr) {
	d := w.s.prog.Decl(e.Decl)
	if d == nil || d.Kind != ast.DeclFunc {
		diag.Internalf("call to missing function %d", e.Decl)
	}
	if d.Has(ast.DecNative) {
		return
	}
	w.s.push(TaskFunc, e.Decl, types.Void, w.s.binder.ResolveAll(e.TypeArgs, w.scope), false)
}

func (w *walker) FuncRef(_ ast.ExprID, e *ast.Expr) {
	d := w.s.prog.Decl(e.Decl)
	if d == nil || d.Kind != ast.DeclFunc {
		diag.Internalf("reference to missing function %d", e.Decl)
	}
	if d.Has(ast.DecNative) {
		if !w.s.badDecls[e.Decl] {
			w.s.bad(e.Decl, diag.SchedBadNative,
				fmt.Sprintf("native function %s cannot be used as a value", d.Name))
		}
		return
	}
	w.s.push(TaskFunc, e.Decl, types.Void, w.s.binder.ResolveAll(e.TypeArgs, w.scope), true)
}

// receiver returns the aggregate type a member-like expression operates on.
func (w *walker) receiver(x ast.ExprID, what string) (types.Handle, *types.Type) {
	h := w.resolve(w.s.prog.Expr(x).Type)
	t := w.s.spec.Get(h)
	if !t.Kind.IsAggregate() {
		diag.Internalf("%s on non-aggregate %s", what, t.Name)
	}
	return h, t
}

func (w *walker) MethodCall(_ ast.ExprID, e *ast.Expr) {
	h, t := w.receiver(e.X, "method call")
	d, ok := t.Method(e.Name)
	if !ok {
		diag.Internalf("%s has no method %s", t.Name, e.Name)
	}
	w.s.push(TaskMethod, ast.DeclID(d), h, nil, false)
}

func (w *walker) Operator(_ ast.ExprID, e *ast.Expr) {
	h, t := w.receiver(e.X, "operator")
	d, ok := t.Operator(uint8(e.Op))
	if !ok {
		diag.Internalf("%s has no operator %s", t.Name, e.Op)
	}
	w.s.push(TaskOperator, ast.DeclID(d), h, nil, false)
}

func (w *walker) Member(_ ast.ExprID, e *ast.Expr) {
	_, t := w.receiver(e.X, "member access")
	if _, ok := t.Member(e.Name); !ok {
		diag.Internalf("%s has no member %s", t.Name, e.Name)
	}
}

func (w *walker) Construct(_ ast.ExprID, e *ast.Expr) {
	h := w.resolve(e.Type)
	t := w.s.spec.Get(h)
	if !t.Kind.IsAggregate() {
		diag.Internalf("construct of non-aggregate %s", t.Name)
	}
	if init := t.Constructor(); init != 0 {
		w.s.push(TaskConstructor, ast.DeclID(init), h, nil, false)
	} else if t.Kind == types.KindClass {
		w.s.alloc = true
	}
}

func (w *walker) Alloc(ast.ExprID, *ast.Expr) {
	w.s.alloc = true
}

// String renders the plan for debugging.
func (p *Plan) String() string {
	var sb strings.Builder
	for _, t := range p.Tasks {
		flag := ""
		if t.Indirect {
			flag = " indirect"
		}
		fmt.Fprintf(&sb, "%s %s%s\n", t.Kind, t.Name, flag)
	}
	return sb.String()
}
