package wasm

import (
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/types"
)

func (g *fnGen) instr(in *ir.Instr) {
	switch in.Op {
	case ir.OpPhi:
		// Fed by edge copies.
	case ir.OpConst, ir.OpAddr, ir.OpFuncRef, ir.OpHeapBase:
		// Replayed at each use.
	case ir.OpCopy:
		g.schedule(in.Args)
		g.define(in)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpRem, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpShl, ir.OpShr, ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		g.schedule(in.Args)
		g.op(g.binary(in.Op, in.Storage))
		g.define(in)
	case ir.OpNeg:
		g.schedule(in.Args)
		switch in.Storage.ValType() {
		case types.F32:
			g.op(opF32Neg)
		case types.F64:
			g.op(opF32Neg + f64Shift)
		case types.I32, types.I64:
			diag.Internalf("%s: integer negation reached emission", g.f.Name)
		}
		g.define(in)
	case ir.OpEqz:
		g.schedule(in.Args)
		g.eqz(in.Storage)
		g.define(in)
	case ir.OpConvert:
		g.schedule(in.Args)
		g.op(convertOpcode(in.From, in.Storage))
		g.define(in)
	case ir.OpLoad:
		g.schedule(in.Args)
		g.op(loadOpcode(in.Storage))
		g.memarg(in.Offset)
		g.define(in)
	case ir.OpStore:
		g.schedule(in.Args)
		g.op(storeOpcode(in.Storage))
		g.memarg(in.Offset)
	case ir.OpCall:
		g.schedule(in.Args)
		g.op(opCall)
		g.u32(g.m.funcIndexOf(in.Callee))
		g.define(in)
	case ir.OpCallIndirect:
		g.schedule(in.Args)
		if in.Sig == nil {
			diag.Internalf("%s: indirect call without signature", g.f.Name)
		}
		g.op(opCallIndirect)
		g.u32(g.m.typeIndexOf(*in.Sig))
		g.op(0x00)
		g.define(in)
	case ir.OpGlobalGet:
		g.op(opGlobalGet)
		g.u32(globalIndex(g.f, in.Callee))
		g.define(in)
	case ir.OpGlobalSet:
		g.schedule(in.Args)
		g.op(opGlobalSet)
		g.u32(globalIndex(g.f, in.Callee))
	case ir.OpReturn:
		g.schedule(in.Args)
		g.op(opReturn)
	case ir.OpBreak:
		g.copies(in.Copies)
		g.op(opBr)
		g.u32(g.depth(in.Target, false))
	case ir.OpContinue:
		g.copies(in.Copies)
		g.op(opBr)
		g.u32(g.depth(in.Target, true))
	case ir.OpBreakIf:
		g.schedule(in.Args)
		if len(in.Copies) == 0 {
			g.op(opBrIf)
			g.u32(g.depth(in.Target, false))
			return
		}
		g.op(opIf, blockEmpty)
		g.pushLabel(label{})
		g.copies(in.Copies)
		g.op(opBr)
		g.u32(g.depth(in.Target, false))
		g.popLabel()
		g.op(opEnd)
	case ir.OpNative:
		g.native(in)
	case ir.OpUnreachable:
		g.op(opUnreachable)
	default:
		diag.Internalf("%s: cannot emit %s", g.f.Name, in.Op)
	}
}

// value emits a reproducible instruction, leaving its result on the stack.
func (g *fnGen) value(in *ir.Instr) {
	switch in.Op {
	case ir.OpConst:
		g.constant(in)
	case ir.OpAddr:
		g.op(opI32Const)
		g.s64(i32Imm(g.m.mem.Address(in.Zone, in.Index, in.Imm)))
	case ir.OpFuncRef:
		if !g.m.unit.InTable(in.Callee) {
			diag.Internalf("%s: %s is referenced but not in the table", g.f.Name, in.Callee)
		}
		g.op(opI32Const)
		g.s64(int64(g.m.unit.TableSlot(in.Callee)))
	case ir.OpHeapBase:
		g.op(opGlobalGet)
		g.u32(globalIndex(g.f, ir.HeapBase))
	default:
		diag.Internalf("%s: %s is not reproducible", g.f.Name, in.Op)
	}
}

func (g *fnGen) constant(in *ir.Instr) {
	switch in.Storage.ValType() {
	case types.I32:
		g.op(opI32Const)
		g.s64(int64(int32(in.Imm))) //nolint:gosec // narrow constants wrap to their register width
	case types.I64:
		g.op(opI64Const)
		g.s64(in.Imm)
	case types.F32:
		g.op(opF32Const)
		g.code = appendF32(g.code, float32(in.Float))
	case types.F64:
		g.op(opF64Const)
		g.code = appendF64(g.code, in.Float)
	}
}

func (g *fnGen) memarg(offset uint32) {
	g.u32(0)
	g.u32(offset)
}

func (g *fnGen) eqz(p types.Prim) {
	switch p.ValType() {
	case types.I32:
		g.op(opI32Eqz)
	case types.I64:
		g.op(opI32Eqz + i64CmpShift)
	case types.F32:
		g.op(opF32Const)
		g.code = appendF32(g.code, 0)
		g.op(opF32Eq)
	case types.F64:
		g.op(opF64Const)
		g.code = appendF64(g.code, 0)
		g.op(opF32Eq + f64CmpShift)
	}
}

func globalIndex(f *ir.Function, name string) uint32 {
	switch name {
	case ir.HeapBase:
		return 0
	case ir.HeapPtr:
		return 1
	}
	diag.Internalf("%s: unknown global %q", f.Name, name)
	return 0
}

func (g *fnGen) native(in *ir.Instr) {
	vt := in.Storage.ValType()
	switch in.Callee {
	case "sqrt", "floor", "ceil", "abs":
		var code byte
		switch in.Callee {
		case "sqrt":
			code = opF32Sqrt
		case "floor":
			code = opF32Floor
		case "ceil":
			code = opF32Ceil
		default:
			code = opF32Abs
		}
		switch vt {
		case types.F32:
		case types.F64:
			code += f64Shift
		case types.I32, types.I64:
			diag.Internalf("%s: float intrinsic %s on %s", g.f.Name, in.Callee, in.Storage)
		}
		g.schedule(in.Args)
		g.op(code)
	case "clz", "ctz", "popcnt":
		code := opI32Clz
		switch in.Callee {
		case "ctz":
			code = opI32Ctz
		case "popcnt":
			code = opI32Popcnt
		}
		switch vt {
		case types.I32:
		case types.I64:
			code += i64Shift
		case types.F32, types.F64:
			diag.Internalf("%s: integer intrinsic %s on %s", g.f.Name, in.Callee, in.Storage)
		}
		g.schedule(in.Args)
		g.op(code)
	case "memory_size":
		g.op(opMemorySize, 0x00)
	case "memory_grow":
		g.schedule(in.Args)
		g.op(opMemoryGrow, 0x00)
	case "unreachable":
		g.op(opUnreachable)
		return
	default:
		diag.Internalf("%s: unknown intrinsic %s", g.f.Name, in.Callee)
	}
	g.define(in)
}

// binary selects the opcode of a two-operand instruction on p.
func (g *fnGen) binary(op ir.Op, p types.Prim) byte {
	vt := p.ValType()
	if vt == types.F32 || vt == types.F64 {
		var code, shift byte
		switch op {
		case ir.OpAdd:
			code = opF32Add
		case ir.OpSub:
			code = opF32Sub
		case ir.OpMul:
			code = opF32Mul
		case ir.OpDiv:
			code = opF32Div
		case ir.OpEq:
			code, shift = opF32Eq, f64CmpShift
		case ir.OpNe:
			code, shift = opF32Ne, f64CmpShift
		case ir.OpLt:
			code, shift = opF32Lt, f64CmpShift
		case ir.OpLe:
			code, shift = opF32Le, f64CmpShift
		case ir.OpGt:
			code, shift = opF32Gt, f64CmpShift
		case ir.OpGe:
			code, shift = opF32Ge, f64CmpShift
		default:
			diag.Internalf("%s: %s has no %s form", g.f.Name, op, p)
		}
		if shift == 0 {
			shift = f64Shift
		}
		if vt == types.F64 {
			code += shift
		}
		return code
	}
	signed := p.Signed()
	pick := func(s, u byte) byte {
		if signed {
			return s
		}
		return u
	}
	var code byte
	cmp := false
	switch op {
	case ir.OpAdd:
		code = opI32Add
	case ir.OpSub:
		code = opI32Sub
	case ir.OpMul:
		code = opI32Mul
	case ir.OpDiv:
		code = pick(opI32DivS, opI32DivU)
	case ir.OpRem:
		code = pick(opI32RemS, opI32RemU)
	case ir.OpAnd:
		code = opI32And
	case ir.OpOr:
		code = opI32Or
	case ir.OpXor:
		code = opI32Xor
	case ir.OpShl:
		code = opI32Shl
	case ir.OpShr:
		code = pick(opI32ShrS, opI32ShrU)
	case ir.OpEq:
		code, cmp = opI32Eq, true
	case ir.OpNe:
		code, cmp = opI32Ne, true
	case ir.OpLt:
		code, cmp = pick(opI32LtS, opI32LtU), true
	case ir.OpLe:
		code, cmp = pick(opI32LeS, opI32LeU), true
	case ir.OpGt:
		code, cmp = pick(opI32GtS, opI32GtU), true
	case ir.OpGe:
		code, cmp = pick(opI32GeS, opI32GeU), true
	default:
		diag.Internalf("%s: %s is not a binary operation", g.f.Name, op)
	}
	if vt == types.I64 {
		if cmp {
			return code + i64CmpShift
		}
		return code + i64Shift
	}
	return code
}

func loadOpcode(p types.Prim) byte {
	switch p {
	case types.Bool, types.UInt8:
		return opI32Load8U
	case types.Int8:
		return opI32Load8S
	case types.Int16:
		return opI32Load16S
	case types.UInt16:
		return opI32Load16U
	case types.Int32, types.UInt32:
		return opI32Load
	case types.Int64, types.UInt64:
		return opI64Load
	case types.Float32:
		return opF32Load
	case types.Float64:
		return opF64Load
	case types.PrimNone:
	}
	diag.Internalf("wasm: cannot load %s", p)
	return 0
}

func storeOpcode(p types.Prim) byte {
	switch p {
	case types.Bool, types.Int8, types.UInt8:
		return opI32Store8
	case types.Int16, types.UInt16:
		return opI32Store16
	case types.Int32, types.UInt32:
		return opI32Store
	case types.Int64, types.UInt64:
		return opI64Store
	case types.Float32:
		return opF32Store
	case types.Float64:
		return opF64Store
	case types.PrimNone:
	}
	diag.Internalf("wasm: cannot store %s", p)
	return 0
}

// convertOpcode converts between register types. Integer sources choose the
// signed form by their own signedness; float sources by the target's.
func convertOpcode(from, to types.Prim) byte {
	src, dst := from.ValType(), to.ValType()
	pick := func(signed bool, s, u byte) byte {
		if signed {
			return s
		}
		return u
	}
	switch {
	case dst == types.I64 && src == types.I32:
		return pick(from.Signed(), opI64ExtendI32S, opI64ExtendI32U)
	case dst == types.I32 && src == types.I64:
		return opI32WrapI64
	case dst == types.F32 && src == types.I32:
		return pick(from.Signed(), opF32ConvertI32S, opF32ConvertI32U)
	case dst == types.F32 && src == types.I64:
		return pick(from.Signed(), opF32ConvertI64S, opF32ConvertI64U)
	case dst == types.F32 && src == types.F64:
		return opF32DemoteF64
	case dst == types.F64 && src == types.I32:
		return pick(from.Signed(), opF64ConvertI32S, opF64ConvertI32U)
	case dst == types.F64 && src == types.I64:
		return pick(from.Signed(), opF64ConvertI64S, opF64ConvertI64U)
	case dst == types.F64 && src == types.F32:
		return opF64PromoteF32
	case dst == types.I32 && src == types.F32:
		return pick(to.Signed(), opI32TruncF32S, opI32TruncF32U)
	case dst == types.I32 && src == types.F64:
		return pick(to.Signed(), opI32TruncF64S, opI32TruncF64U)
	case dst == types.I64 && src == types.F32:
		return pick(to.Signed(), opI64TruncF32S, opI64TruncF32U)
	case dst == types.I64 && src == types.F64:
		return pick(to.Signed(), opI64TruncF64S, opI64TruncF64U)
	}
	diag.Internalf("wasm: no conversion from %s to %s", from, to)
	return 0
}
