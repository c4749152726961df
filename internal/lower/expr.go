package lower

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/types"
)

var binaryOps = map[ast.Op]ir.Op{
	ast.OpAdd: ir.OpAdd,
	ast.OpSub: ir.OpSub,
	ast.OpMul: ir.OpMul,
	ast.OpDiv: ir.OpDiv,
	ast.OpRem: ir.OpRem,
	ast.OpAnd: ir.OpAnd,
	ast.OpOr:  ir.OpOr,
	ast.OpXor: ir.OpXor,
	ast.OpShl: ir.OpShl,
	ast.OpShr: ir.OpShr,
	ast.OpEq:  ir.OpEq,
	ast.OpNe:  ir.OpNe,
	ast.OpLt:  ir.OpLt,
	ast.OpLe:  ir.OpLe,
	ast.OpGt:  ir.OpGt,
	ast.OpGe:  ir.OpGe,
}

// floatOps lists the binary operators with a floating-point instruction.
var floatOps = map[ir.Op]bool{
	ir.OpAdd: true, ir.OpSub: true, ir.OpMul: true, ir.OpDiv: true,
	ir.OpEq: true, ir.OpNe: true, ir.OpLt: true, ir.OpLe: true, ir.OpGt: true, ir.OpGe: true,
}

// rvalue lowers id and returns the variables holding its value.
func (c *fnLowering) rvalue(id ast.ExprID) []ir.Var {
	return c.read(c.expr(id, nil))
}

// into lowers id directly into dst.
func (c *fnLowering) into(id ast.ExprID, dst Value) {
	c.expr(id, &dst)
}

// deliver places freshly computed vals into dst, if any.
func (c *fnLowering) deliver(vals []ir.Var, h types.Handle, dst *Value) Value {
	if dst == nil {
		return Value{Access: Direct, Type: h, Slots: vals}
	}
	c.write(*dst, vals)
	return *dst
}

func (c *fnLowering) deliverValue(v Value, dst *Value) Value {
	if dst == nil {
		return v
	}
	c.write(*dst, c.read(v))
	return *dst
}

func (c *fnLowering) constInto(v ir.Var, p types.Prim, n int64) {
	in := ir.Instr{Op: ir.OpConst, Dst: []ir.Var{v}, Storage: p, Imm: n}
	if p.IsFloat() {
		in.Imm = 0
		in.Float = float64(n)
	}
	c.emit(in)
}

func (c *fnLowering) constant(p types.Prim, n int64) ir.Var {
	v := c.newVar(p)
	c.constInto(v, p, n)
	return v
}

func (c *fnLowering) addr(zone ir.Zone, index int, imm int64) ir.Var {
	v := c.newVar(types.PtrPrim)
	c.emit(ir.Instr{Op: ir.OpAddr, Dst: []ir.Var{v}, Zone: zone, Index: index, Imm: imm, Storage: types.PtrPrim})
	return v
}

func (c *fnLowering) op(op ir.Op, storage, result types.Prim, args ...ir.Var) ir.Var {
	v := c.newVar(result)
	c.emit(ir.Instr{Op: op, Dst: []ir.Var{v}, Args: args, Storage: storage})
	return v
}

// alloc calls the bump allocator for size bytes.
func (c *fnLowering) alloc(size int) ir.Var {
	n := c.constant(types.PtrPrim, int64(size))
	return c.call(ir.AllocFunc, []ir.Var{n}, c.l.spec.Prim(types.PtrPrim), nil)[0]
}

// expr lowers id, writing into dst when given.
func (c *fnLowering) expr(id ast.ExprID, dst *Value) Value {
	e := c.l.prog.Expr(id)
	if e == nil {
		diag.Internalf("%s: missing expression %d", c.f.Name, id)
	}
	h := c.resolve(e.Type)
	t := c.typ(h)
	switch e.Kind {
	case ast.ExprInt:
		p := t.Slots()[0]
		v := c.newVar(p)
		in := ir.Instr{Op: ir.OpConst, Dst: []ir.Var{v}, Storage: p, Imm: e.Int}
		if p.IsFloat() {
			in.Imm, in.Float = 0, float64(e.Int)
		}
		c.emit(in)
		return c.deliver([]ir.Var{v}, h, dst)
	case ast.ExprFloat:
		p := t.Slots()[0]
		v := c.newVar(p)
		c.emit(ir.Instr{Op: ir.OpConst, Dst: []ir.Var{v}, Storage: p, Float: e.Float})
		return c.deliver([]ir.Var{v}, h, dst)
	case ast.ExprBool:
		n := int64(0)
		if e.Bool {
			n = 1
		}
		return c.deliver([]ir.Var{c.constant(types.Bool, n)}, h, dst)
	case ast.ExprNull:
		return c.deliver([]ir.Var{c.constant(types.PtrPrim, 0)}, h, dst)
	case ast.ExprString:
		return c.deliver(c.stringLit(id, e, t), h, dst)
	case ast.ExprLocal:
		return c.deliverValue(Value{Access: Direct, Type: h, Slots: c.locals[e.Local]}, dst)
	case ast.ExprSelf:
		return c.deliverValue(Value{Access: Direct, Type: c.selfType, Slots: c.self}, dst)
	case ast.ExprGlobal:
		return c.deliverValue(Value{Access: Global, Type: h, Global: c.l.globals[e.Decl]}, dst)
	case ast.ExprFuncRef:
		v := c.newVar(types.PtrPrim)
		name := c.funcName(e)
		c.l.unit.TableSlot(name)
		c.emit(ir.Instr{Op: ir.OpFuncRef, Dst: []ir.Var{v}, Callee: name, Storage: types.PtrPrim})
		return c.deliver([]ir.Var{v}, h, dst)
	case ast.ExprCall:
		return c.deliver(c.directCall(e, h), h, dst)
	case ast.ExprCallValue:
		return c.deliver(c.valueCall(e, h), h, dst)
	case ast.ExprMethodCall:
		recv := c.resolve(c.l.prog.Expr(e.X).Type)
		decl, ok := c.typ(recv).Method(e.Name)
		if !ok {
			diag.Internalf("%s has no method %s", c.typ(recv).Name, e.Name)
		}
		args := append([]ir.Var(nil), c.rvalue(e.X)...)
		args = append(args, c.args(e.Args)...)
		return c.deliver(c.call(c.memberName(recv, decl), args, h, nil), h, dst)
	case ast.ExprOperator:
		recv := c.resolve(c.l.prog.Expr(e.X).Type)
		decl, ok := c.typ(recv).Operator(uint8(e.Op))
		if !ok {
			diag.Internalf("%s has no operator %s", c.typ(recv).Name, e.Op)
		}
		args := append([]ir.Var(nil), c.rvalue(e.X)...)
		if e.Y.IsValid() {
			args = append(args, c.rvalue(e.Y)...)
		}
		return c.deliver(c.call(c.memberName(recv, decl), args, h, nil), h, dst)
	case ast.ExprMember:
		return c.deliverValue(c.member(c.expr(e.X, nil), e.Name), dst)
	case ast.ExprBinary:
		if e.Op == ast.OpLogAnd || e.Op == ast.OpLogOr {
			return c.deliver([]ir.Var{c.logical(e)}, h, dst)
		}
		op, ok := binaryOps[e.Op]
		if !ok {
			diag.Internalf("%s: unknown binary operator %s", c.f.Name, e.Op)
		}
		x := c.rvalue(e.X)[0]
		y := c.rvalue(e.Y)[0]
		if c.f.VarPrim(x).IsFloat() && !floatOps[op] {
			diag.ReportError(c.l.rep, diag.LowerUnsupported, e.Span,
				fmt.Sprintf("operator %s is not defined on %s", e.Op, c.f.VarPrim(x))).Emit()
		}
		v := c.op(op, c.f.VarPrim(x), t.Slots()[0], x, y)
		return c.deliver([]ir.Var{v}, h, dst)
	case ast.ExprUnary:
		return c.deliver([]ir.Var{c.unary(e, t.Slots()[0])}, h, dst)
	case ast.ExprConvert:
		return c.deliver(c.convert(e, t), h, dst)
	case ast.ExprConstruct:
		return c.construct(e, h, dst)
	case ast.ExprAlloc:
		elem := t.Elem
		p := c.alloc(c.typ(elem).ValueSize())
		if e.X.IsValid() {
			c.into(e.X, Value{Access: PtrRel, Type: elem, Base: p})
		}
		return c.deliver([]ir.Var{p}, h, dst)
	case ast.ExprDeref:
		return c.deliverValue(Value{Access: PtrRel, Type: h, Base: c.rvalue(e.X)[0]}, dst)
	}
	diag.Internalf("%s: unknown expression kind %s", c.f.Name, e.Kind)
	return Value{}
}

func (c *fnLowering) args(ids []ast.ExprID) []ir.Var {
	var out []ir.Var
	for _, id := range ids {
		out = append(out, c.rvalue(id)...)
	}
	return out
}

// stringLit places the literal's bytes in a data segment. One-slot string
// types get the address, two-slot types the address and byte length.
func (c *fnLowering) stringLit(id ast.ExprID, e *ast.Expr, t *types.Type) []ir.Var {
	c.l.checkNFC(id, e)
	seg := c.l.unit.Segment([]byte(e.Str))
	slots := t.Slots()
	switch len(slots) {
	case 1:
		return []ir.Var{c.addr(ir.ZoneData, seg, 0)}
	case 2:
		return []ir.Var{c.addr(ir.ZoneData, seg, 0), c.constant(slots[1], int64(len(e.Str)))}
	}
	diag.ReportError(c.l.rep, diag.LowerUnsupported, e.Span,
		fmt.Sprintf("string literal cannot initialise %s", t.Name)).Emit()
	return c.vars(slots)
}

func (c *fnLowering) unary(e *ast.Expr, result types.Prim) ir.Var {
	x := c.rvalue(e.X)[0]
	p := c.f.VarPrim(x)
	switch e.Op {
	case ast.OpNeg:
		if p.IsFloat() {
			return c.op(ir.OpNeg, p, result, x)
		}
		return c.op(ir.OpSub, p, result, c.constant(p, 0), x)
	case ast.OpNot:
		return c.op(ir.OpEqz, p, result, x)
	case ast.OpBitNot:
		return c.op(ir.OpXor, p, result, x, c.constant(p, -1))
	}
	diag.Internalf("%s: unknown unary operator %s", c.f.Name, e.Op)
	return 0
}

// convert copies when source and target share a register type and emits a
// convert instruction otherwise.
func (c *fnLowering) convert(e *ast.Expr, t *types.Type) []ir.Var {
	src := c.rvalue(e.X)
	to := t.Slots()
	if len(src) != len(to) {
		diag.Internalf("%s: converting %d slots to %d", c.f.Name, len(src), len(to))
	}
	out := make([]ir.Var, len(src))
	for i, v := range src {
		from := c.f.VarPrim(v)
		if from.ValType() == to[i].ValType() {
			out[i] = c.newVar(to[i])
			c.emit(ir.Instr{Op: ir.OpCopy, Dst: []ir.Var{out[i]}, Args: []ir.Var{v}})
			continue
		}
		out[i] = c.newVar(to[i])
		c.emit(ir.Instr{Op: ir.OpConvert, Dst: []ir.Var{out[i]}, Args: []ir.Var{v}, From: from, Storage: to[i]})
	}
	return out
}

// logical lowers && and || to a breakable block that skips the right
// operand once the left one decides the result.
func (c *fnLowering) logical(e *ast.Expr) ir.Var {
	r := c.newVar(types.Bool)
	b := c.structured(ir.BlockBreakable)
	c.nest(&b.Body, func() {
		x := c.rvalue(e.X)[0]
		c.emit(ir.Instr{Op: ir.OpCopy, Dst: []ir.Var{r}, Args: []ir.Var{x}})
		test := x
		if e.Op == ast.OpLogAnd {
			test = c.op(ir.OpEqz, c.f.VarPrim(x), types.Bool, x)
		}
		c.emit(ir.Instr{Op: ir.OpBreakIf, Args: []ir.Var{test}, Target: b.ID})
		c.openBasic()
		y := c.rvalue(e.Y)[0]
		c.emit(ir.Instr{Op: ir.OpCopy, Dst: []ir.Var{r}, Args: []ir.Var{y}})
	})
	c.openBasic()
	return r
}

// construct builds an aggregate. A user initializer is an ordinary call;
// otherwise struct fields are assigned straight into the destination and
// class fields into a fresh allocation.
func (c *fnLowering) construct(e *ast.Expr, h types.Handle, dst *Value) Value {
	t := c.typ(h)
	if init := t.Constructor(); init != 0 {
		vals := c.call(c.memberName(h, init), c.args(e.Args), h, nil)
		return c.deliver(vals, h, dst)
	}
	if len(e.Args) != len(t.Members) {
		diag.Internalf("%s: %s takes %d fields, got %d", c.f.Name, t.Name, len(t.Members), len(e.Args))
	}
	switch t.Kind {
	case types.KindStruct:
		target := dst
		if target == nil {
			target = &Value{Access: Direct, Type: h, Slots: c.vars(t.Slots())}
		}
		for i := range t.Members {
			c.into(e.Args[i], c.member(*target, t.Members[i].Name))
		}
		return *target
	case types.KindClass:
		p := c.alloc(t.Size)
		for i := range t.Members {
			c.into(e.Args[i], field(p, &t.Members[i]))
		}
		return c.deliver([]ir.Var{p}, h, dst)
	case types.KindVoid, types.KindPrimitive, types.KindPointer, types.KindFunc:
	}
	diag.Internalf("%s: cannot construct %s", c.f.Name, t.Name)
	return Value{}
}

// checkNFC warns about literals whose bytes differ from their NFC form. The
// bytes are emitted unchanged, so visually equal literals may compare unequal.
func (l *lowerer) checkNFC(id ast.ExprID, e *ast.Expr) {
	if l.checked[id] {
		return
	}
	l.checked[id] = true
	if norm.NFC.IsNormalString(e.Str) {
		return
	}
	diag.ReportWarning(l.rep, diag.LowerStringNotNFC, e.Span,
		fmt.Sprintf("string literal %q is not in NFC form", e.Str)).
		WithNote(e.Span, fmt.Sprintf("its NFC form is %q", norm.NFC.String(e.Str))).
		Emit()
}
