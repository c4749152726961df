package lower

import (
	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/sched"
	"keel/internal/types"
)

// call emits a call and collects its result: slot 0 natively, the rest from
// the scratch slots the callee stored them in.
func (c *fnLowering) call(callee string, args []ir.Var, result types.Handle, indirect *ir.Signature) []ir.Var {
	slots := c.typ(result).Slots()
	in := ir.Instr{Op: ir.OpCall, Args: args, Callee: callee}
	if indirect != nil {
		in.Op = ir.OpCallIndirect
		in.Callee = ""
		in.Sig = indirect
	}
	if len(slots) == 0 {
		c.emit(in)
		return nil
	}
	out := make([]ir.Var, len(slots))
	out[0] = c.newVar(slots[0])
	in.Dst = []ir.Var{out[0]}
	c.emit(in)
	for k := 1; k < len(slots); k++ {
		base := c.addr(ir.ZoneScratch, c.l.unit.ScratchSlot(k, slots[k]), 0)
		out[k] = c.newVar(slots[k])
		c.emit(ir.Instr{Op: ir.OpLoad, Dst: []ir.Var{out[k]}, Args: []ir.Var{base}, Storage: slots[k]})
	}
	return out
}

func (c *fnLowering) funcName(e *ast.Expr) string {
	return sched.FuncName(c.l.binder, e.Decl, c.l.binder.ResolveAll(e.TypeArgs, c.scope))
}

func (c *fnLowering) memberName(owner types.Handle, decl uint32) string {
	return sched.MemberName(c.l.binder, owner, ast.DeclID(decl))
}

func (c *fnLowering) directCall(e *ast.Expr, result types.Handle) []ir.Var {
	d := c.l.prog.Decl(e.Decl)
	if d == nil || d.Func == nil {
		diag.Internalf("%s: call to missing function %d", c.f.Name, e.Decl)
	}
	if d.Has(ast.DecNative) {
		return c.native(sched.NativeName(d), c.args(e.Args), result)
	}
	return c.call(c.funcName(e), c.args(e.Args), result, nil)
}

func (c *fnLowering) valueCall(e *ast.Expr, result types.Handle) []ir.Var {
	fv := c.rvalue(e.X)[0]
	ft := c.typ(c.resolve(c.l.prog.Expr(e.X).Type))
	if ft.Kind != types.KindFunc {
		diag.Internalf("%s: calling a value of type %s", c.f.Name, ft.Name)
	}
	sig := c.l.signature(ft.Params, ft.Result)
	args := append(c.args(e.Args), fv)
	return c.call("", args, result, &sig)
}

// native expands an intrinsic inline.
func (c *fnLowering) native(name string, args []ir.Var, result types.Handle) []ir.Var {
	slots := c.typ(result).Slots()
	var dst []ir.Var
	if len(slots) > 0 {
		dst = []ir.Var{c.newVar(slots[0])}
	}
	storage := types.Int32
	if len(args) > 0 {
		storage = c.f.VarPrim(args[0])
	}
	if name == "abs" && !storage.IsFloat() {
		// |x| = (x ^ s) - s with s = x >> (bits-1)
		x := args[0]
		shift := c.constant(storage, int64(storage.ValType().Bits()-1))
		sign := c.op(ir.OpShr, storage.AsSigned(), storage, x, shift)
		flipped := c.op(ir.OpXor, storage, storage, x, sign)
		c.emit(ir.Instr{Op: ir.OpSub, Dst: dst, Args: []ir.Var{flipped, sign}, Storage: storage})
		return dst
	}
	c.emit(ir.Instr{Op: ir.OpNative, Dst: dst, Args: args, Callee: name, Storage: storage})
	return dst
}
