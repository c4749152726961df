package lower

import (
	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/sched"
	"keel/internal/types"
)

// fnLowering is the compilation environment of one function.
type fnLowering struct {
	l     *lowerer
	task  *sched.Task
	decl  *ast.Decl
	f     *ir.Function
	scope []types.Handle

	self     []ir.Var
	selfType types.Handle
	locals   [][]ir.Var
	result   types.Handle

	arrays []*[]ir.BlockID
	cur    *ir.Block
	loops  []ir.BlockID
}

// newFn allocates variables in order: self, parameters, constants, then
// mutable locals.
func (l *lowerer) newFn(t *sched.Task, name string, d *ast.Decl, result types.Handle) *fnLowering {
	c := &fnLowering{l: l, task: t, decl: d, scope: sched.Scope(l.spec, t), result: result}
	var locals []ast.Local
	var params []ast.LocalID
	if d != nil {
		locals = d.Func.Locals
		params = d.Func.Params
	} else {
		locals = l.prog.MainLocals
	}
	hasSelf := d != nil && d.Func.Kind != ast.FuncPlain && d.Func.Kind != ast.FuncConstructor
	var native []types.Prim
	if hasSelf {
		c.selfType = t.Owner
		native = append(native, c.typ(t.Owner).Slots()...)
	}
	for _, p := range params {
		native = append(native, c.typ(c.resolve(locals[p].Type)).Slots()...)
	}
	var resultPrim types.Prim
	if rs := c.typ(result).Slots(); len(rs) > 0 {
		resultPrim = rs[0]
	}
	c.f = ir.NewFunction(name, native, resultPrim)

	next := 0
	take := func(n int) []ir.Var {
		out := make([]ir.Var, n)
		for i := range out {
			out[i] = ir.Var(next + i)
		}
		next += n
		return out
	}
	if hasSelf {
		c.self = take(c.typ(t.Owner).SlotCount())
	}
	c.locals = make([][]ir.Var, len(locals))
	for _, p := range params {
		c.locals[p] = take(c.typ(c.resolve(locals[p].Type)).SlotCount())
	}
	for _, kind := range []ast.LocalKind{ast.LocalConst, ast.LocalVar} {
		for i, loc := range locals {
			if loc.Kind == kind {
				c.locals[i] = c.vars(c.typ(c.resolve(loc.Type)).Slots())
			}
		}
	}
	c.arrays = []*[]ir.BlockID{&c.f.Body}
	c.openBasic()
	return c
}

func (c *fnLowering) typ(h types.Handle) *types.Type      { return c.l.spec.Get(h) }
func (c *fnLowering) resolve(t ast.TypeID) types.Handle { return c.l.binder.Resolve(t, c.scope) }
func (c *fnLowering) newVar(p types.Prim) ir.Var        { return c.f.NewVar(p) }

func (c *fnLowering) vars(ps []types.Prim) []ir.Var {
	out := make([]ir.Var, len(ps))
	for i, p := range ps {
		out[i] = c.newVar(p)
	}
	return out
}

func (c *fnLowering) emit(in ir.Instr) {
	c.cur.Instrs = append(c.cur.Instrs, in)
}

// openBasic starts a fresh basic block in the innermost array.
func (c *fnLowering) openBasic() {
	b := c.f.NewBlock(ir.BlockBasic)
	top := c.arrays[len(c.arrays)-1]
	*top = append(*top, b.ID)
	c.cur = b
}

func (c *fnLowering) structured(kind ir.BlockKind) *ir.Block {
	b := c.f.NewBlock(kind)
	top := c.arrays[len(c.arrays)-1]
	*top = append(*top, b.ID)
	return b
}

// nest lowers fn into arr, which starts with a fresh basic block.
func (c *fnLowering) nest(arr *[]ir.BlockID, fn func()) {
	c.arrays = append(c.arrays, arr)
	c.openBasic()
	fn()
	c.arrays = c.arrays[:len(c.arrays)-1]
}

func (c *fnLowering) body(d *ast.Decl) {
	ctor := d.Func.Kind == ast.FuncConstructor
	if ctor {
		c.selfType = c.task.Owner
		t := c.typ(c.task.Owner)
		if t.Kind == types.KindClass {
			c.self = []ir.Var{c.alloc(t.Size)}
		} else {
			c.self = c.vars(t.Slots())
			for _, v := range c.self {
				c.constInto(v, c.f.VarPrim(v), 0)
			}
		}
	}
	c.stmts(d.Func.Body)
	switch {
	case c.cur.Terminated():
	case ctor:
		c.ret(c.self)
	case c.f.Result != types.PrimNone:
		c.emit(ir.Instr{Op: ir.OpUnreachable})
	}
}

// entry lowers the program entry: heap reset, global initializers, then
// the top-level statements.
func (c *fnLowering) entry() {
	if c.l.plan.NeedsAlloc {
		base := c.newVar(types.PtrPrim)
		c.emit(ir.Instr{Op: ir.OpHeapBase, Dst: []ir.Var{base}, Storage: types.PtrPrim})
		c.emit(ir.Instr{Op: ir.OpGlobalSet, Args: []ir.Var{base}, Callee: ir.HeapPtr, Storage: types.PtrPrim})
	}
	for _, id := range c.l.prog.DeclIDs() {
		d := c.l.prog.Decl(id)
		if d.Kind != ast.DeclGlobal || !d.Global.Init.IsValid() {
			continue
		}
		g := Value{Access: Global, Type: c.resolve(d.Global.Type), Global: c.l.globals[id]}
		c.into(d.Global.Init, g)
	}
	c.stmts(c.l.prog.Main)
}

func (c *fnLowering) stmts(ids []ast.StmtID) {
	for _, id := range ids {
		c.stmt(id)
	}
}

func (c *fnLowering) stmt(id ast.StmtID) {
	s := c.l.prog.Stmt(id)
	if s == nil {
		diag.Internalf("%s: missing statement %d", c.f.Name, id)
	}
	switch s.Kind {
	case ast.StmtExpr:
		c.expr(s.Expr, nil)
	case ast.StmtLet:
		dst := Value{Access: Direct, Type: c.localType(s.Local), Slots: c.locals[s.Local]}
		if s.Expr.IsValid() {
			c.into(s.Expr, dst)
		} else {
			for _, v := range dst.Slots {
				c.constInto(v, c.f.VarPrim(v), 0)
			}
		}
	case ast.StmtAssign:
		lv := c.lvalue(s.Target)
		if rhs := c.l.prog.Expr(s.Expr); rhs != nil && rhs.Kind == ast.ExprConstruct {
			// Fields of the target may feed the constructor arguments.
			c.write(lv, c.read(c.expr(s.Expr, nil)))
		} else {
			c.into(s.Expr, lv)
		}
	case ast.StmtIf:
		cond := c.rvalue(s.Expr)[0]
		if len(s.Else) == 0 {
			b := c.structured(ir.BlockIf)
			b.Cond = cond
			c.nest(&b.Body, func() { c.stmts(s.Then) })
		} else {
			b := c.structured(ir.BlockIfElse)
			b.Cond = cond
			c.nest(&b.Body, func() { c.stmts(s.Then) })
			c.nest(&b.Else, func() { c.stmts(s.Else) })
		}
		c.openBasic()
	case ast.StmtWhile:
		loop := c.structured(ir.BlockLoop)
		c.loops = append(c.loops, loop.ID)
		c.nest(&loop.Body, func() {
			cond := c.rvalue(s.Expr)[0]
			exit := c.newVar(types.Bool)
			c.emit(ir.Instr{Op: ir.OpEqz, Dst: []ir.Var{exit}, Args: []ir.Var{cond}, Storage: c.f.VarPrim(cond)})
			c.emit(ir.Instr{Op: ir.OpBreakIf, Args: []ir.Var{exit}, Target: loop.ID})
			c.openBasic()
			c.stmts(s.Then)
		})
		c.loops = c.loops[:len(c.loops)-1]
		c.openBasic()
	case ast.StmtBreak, ast.StmtContinue:
		if len(c.loops) == 0 {
			diag.Internalf("%s: %s outside a loop", c.f.Name, s.Kind)
		}
		op := ir.OpBreak
		if s.Kind == ast.StmtContinue {
			op = ir.OpContinue
		}
		c.emit(ir.Instr{Op: op, Target: c.loops[len(c.loops)-1]})
		c.openBasic()
	case ast.StmtReturn:
		switch {
		case c.decl != nil && c.decl.Func.Kind == ast.FuncConstructor:
			c.ret(c.self)
		case s.Expr.IsValid():
			c.ret(c.rvalue(s.Expr))
		default:
			c.ret(nil)
		}
		c.openBasic()
	}
}

func (c *fnLowering) localType(id ast.LocalID) types.Handle {
	var locals []ast.Local
	if c.decl != nil {
		locals = c.decl.Func.Locals
	} else {
		locals = c.l.prog.MainLocals
	}
	return c.resolve(locals[id].Type)
}

// ret stores result slots past the first into scratch memory, then returns
// the first natively.
func (c *fnLowering) ret(vals []ir.Var) {
	if len(vals) == 0 {
		c.emit(ir.Instr{Op: ir.OpReturn})
		return
	}
	for k := 1; k < len(vals); k++ {
		p := c.f.VarPrim(vals[k])
		slot := c.l.unit.ScratchSlot(k, p)
		base := c.addr(ir.ZoneScratch, slot, 0)
		c.emit(ir.Instr{Op: ir.OpStore, Args: []ir.Var{base, vals[k]}, Storage: p})
	}
	c.emit(ir.Instr{Op: ir.OpReturn, Args: []ir.Var{vals[0]}})
}

// lvalue resolves an assignment target.
func (c *fnLowering) lvalue(id ast.ExprID) Value {
	e := c.l.prog.Expr(id)
	h := c.resolve(e.Type)
	switch e.Kind {
	case ast.ExprLocal:
		return Value{Access: Direct, Type: h, Slots: c.locals[e.Local]}
	case ast.ExprSelf:
		return Value{Access: Direct, Type: c.selfType, Slots: c.self}
	case ast.ExprGlobal:
		return Value{Access: Global, Type: h, Global: c.l.globals[e.Decl]}
	case ast.ExprDeref:
		return Value{Access: PtrRel, Type: h, Base: c.rvalue(e.X)[0]}
	case ast.ExprMember:
		xt := c.resolve(c.l.prog.Expr(e.X).Type)
		if c.typ(xt).Kind == types.KindClass {
			return c.member(c.expr(e.X, nil), e.Name)
		}
		return c.member(c.lvalue(e.X), e.Name)
	}
	diag.Internalf("%s: %s is not assignable", c.f.Name, e.Kind)
	return Value{}
}
