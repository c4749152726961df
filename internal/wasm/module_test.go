package wasm

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/ssa"
	"keel/internal/testkit"
	"keel/internal/types"
)

func unitWith(funcs ...*ir.Function) *ir.Unit {
	u := ir.NewUnit()
	u.Entry = ir.EntryFunc
	u.EntryExport = ir.EntryAlias
	entry := ir.NewFunction(ir.EntryFunc, nil, types.PrimNone)
	b := entry.NewBlock(ir.BlockBasic)
	entry.Body = []ir.BlockID{b.ID}
	entry.Export = ir.EntryAlias
	u.Funcs = append(u.Funcs, entry)
	for _, f := range funcs {
		ssa.Run(f)
		u.Funcs = append(u.Funcs, f)
	}
	return u
}

func emit(t *testing.T, u *ir.Unit) []byte {
	t.Helper()
	bag := diag.NewBag(10)
	bin := Emit(context.Background(), u, diag.BagReporter{Bag: bag}, DefaultOptions())
	if bag.HasErrors() || bin == nil {
		t.Fatalf("emit failed: %v", bag.Items())
	}
	return bin
}

func addFunction() *ir.Function {
	f := ir.NewFunction("add", []types.Prim{types.Int32, types.Int32}, types.Int32)
	f.Export = "add"
	b := f.NewBlock(ir.BlockBasic)
	sum := f.NewVar(types.Int32)
	b.Instrs = []ir.Instr{
		{Op: ir.OpAdd, Dst: []ir.Var{sum}, Args: []ir.Var{0, 1}, Storage: types.Int32},
		{Op: ir.OpReturn, Args: []ir.Var{sum}},
	}
	f.Body = []ir.BlockID{b.ID}
	return f
}

func TestEmitAddSignature(t *testing.T) {
	bin := emit(t, unitWith(addFunction()))
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	cm, err := r.CompileModule(ctx, bin)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	def, ok := cm.ExportedFunctions()["add"]
	if !ok {
		t.Fatalf("add is not exported")
	}
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != 2 || params[0] != api.ValueTypeI32 || params[1] != api.ValueTypeI32 ||
		len(results) != 1 || results[0] != api.ValueTypeI32 {
		t.Fatalf("add has type %v -> %v", params, results)
	}
	if _, ok := cm.ExportedMemories()["memory"]; !ok {
		t.Fatalf("memory is not exported")
	}

	mod, _ := testkit.Instantiate(t, bin)
	if got := api.DecodeI32(testkit.Call(t, mod, "add", api.EncodeI32(2), api.EncodeI32(-5))); got != -3 {
		t.Fatalf("add(2, -5) = %d", got)
	}
}

// reversed computes y - x where x is produced before y, forcing the
// scheduler to reorder operands through a spill.
func reversed() *ir.Function {
	f := ir.NewFunction("rev", []types.Prim{types.Int32}, types.Int32)
	f.Export = "rev"
	b := f.NewBlock(ir.BlockBasic)
	x := f.NewVar(types.Int32)
	y := f.NewVar(types.Int32)
	d := f.NewVar(types.Int32)
	ten := f.NewVar(types.Int32)
	b.Instrs = []ir.Instr{
		{Op: ir.OpConst, Dst: []ir.Var{ten}, Storage: types.Int32, Imm: 10},
		{Op: ir.OpMul, Dst: []ir.Var{x}, Args: []ir.Var{0, ten}, Storage: types.Int32},
		{Op: ir.OpAdd, Dst: []ir.Var{y}, Args: []ir.Var{0, ten}, Storage: types.Int32},
		{Op: ir.OpSub, Dst: []ir.Var{d}, Args: []ir.Var{y, x}, Storage: types.Int32},
		{Op: ir.OpReturn, Args: []ir.Var{d}},
	}
	f.Body = []ir.BlockID{b.ID}
	return f
}

func TestEmitReordersOperands(t *testing.T) {
	mod, _ := testkit.Instantiate(t, emit(t, unitWith(reversed())))
	// (3 + 10) - 3*10
	if got := api.DecodeI32(testkit.Call(t, mod, "rev", api.EncodeI32(3))); got != -17 {
		t.Fatalf("rev(3) = %d, want -17", got)
	}
}

// loopSum mirrors the IR lowering produces for a while loop summing 0..n-1.
func loopSum() *ir.Function {
	f := ir.NewFunction("sum", []types.Prim{types.Int32}, types.Int32)
	f.Export = "sum"
	s := f.NewVar(types.Int32)
	i := f.NewVar(types.Int32)
	lt := f.NewVar(types.Bool)
	exit := f.NewVar(types.Bool)
	one := f.NewVar(types.Int32)
	init := f.NewBlock(ir.BlockBasic)
	init.Instrs = []ir.Instr{
		{Op: ir.OpConst, Dst: []ir.Var{s}, Storage: types.Int32},
		{Op: ir.OpConst, Dst: []ir.Var{i}, Storage: types.Int32},
	}
	loop := f.NewBlock(ir.BlockLoop)
	head := f.NewBlock(ir.BlockBasic)
	head.Instrs = []ir.Instr{
		{Op: ir.OpLt, Dst: []ir.Var{lt}, Args: []ir.Var{i, 0}, Storage: types.Int32},
		{Op: ir.OpEqz, Dst: []ir.Var{exit}, Args: []ir.Var{lt}, Storage: types.Bool},
		{Op: ir.OpBreakIf, Args: []ir.Var{exit}, Target: loop.ID},
	}
	body := f.NewBlock(ir.BlockBasic)
	body.Instrs = []ir.Instr{
		{Op: ir.OpAdd, Dst: []ir.Var{s}, Args: []ir.Var{s, i}, Storage: types.Int32},
		{Op: ir.OpConst, Dst: []ir.Var{one}, Storage: types.Int32, Imm: 1},
		{Op: ir.OpAdd, Dst: []ir.Var{i}, Args: []ir.Var{i, one}, Storage: types.Int32},
	}
	loop.Body = []ir.BlockID{head.ID, body.ID}
	tail := f.NewBlock(ir.BlockBasic)
	tail.Instrs = []ir.Instr{{Op: ir.OpReturn, Args: []ir.Var{s}}}
	f.Body = []ir.BlockID{init.ID, loop.ID, tail.ID}
	return f
}

func TestEmitLoopWithPhis(t *testing.T) {
	mod, _ := testkit.Instantiate(t, emit(t, unitWith(loopSum())))
	for n, want := range map[int32]int32{0: 0, 1: 0, 10: 45, 100: 4950} {
		if got := api.DecodeI32(testkit.Call(t, mod, "sum", api.EncodeI32(n))); got != want {
			t.Fatalf("sum(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestEmitConversionsAndFloats(t *testing.T) {
	f := ir.NewFunction("mix", []types.Prim{types.Int32, types.Float64}, types.Float64)
	f.Export = "mix"
	b := f.NewBlock(ir.BlockBasic)
	wide := f.NewVar(types.Int64)
	fl := f.NewVar(types.Float64)
	root := f.NewVar(types.Float64)
	out := f.NewVar(types.Float64)
	b.Instrs = []ir.Instr{
		{Op: ir.OpConvert, Dst: []ir.Var{wide}, Args: []ir.Var{0}, From: types.Int32, Storage: types.Int64},
		{Op: ir.OpConvert, Dst: []ir.Var{fl}, Args: []ir.Var{wide}, From: types.Int64, Storage: types.Float64},
		{Op: ir.OpNative, Dst: []ir.Var{root}, Args: []ir.Var{1}, Callee: "sqrt", Storage: types.Float64},
		{Op: ir.OpAdd, Dst: []ir.Var{out}, Args: []ir.Var{fl, root}, Storage: types.Float64},
		{Op: ir.OpReturn, Args: []ir.Var{out}},
	}
	f.Body = []ir.BlockID{b.ID}
	mod, _ := testkit.Instantiate(t, emit(t, unitWith(f)))
	got := api.DecodeF64(testkit.Call(t, mod, "mix", api.EncodeI32(-4), api.EncodeF64(16)))
	if got != 0 {
		t.Fatalf("mix(-4, 16) = %v, want 0", got)
	}
}

func TestEmitReportsMemoryTooSmall(t *testing.T) {
	u := unitWith()
	u.Segment(make([]byte, PageSize))
	bag := diag.NewBag(10)
	bin := Emit(context.Background(), u, diag.BagReporter{Bag: bag}, Options{MinPages: 1, MaxPages: 4})
	if bin != nil {
		t.Fatalf("expected no module")
	}
	if !bag.HasCode(diag.EmitMemoryTooSmall) {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestEmitDeduplicatesTypes(t *testing.T) {
	g := addFunction()
	g.Name, g.Export = "add2", "add2"
	u := unitWith(addFunction(), g)
	m := &module{unit: u, typeCache: map[string]uint32{}, funcIndex: map[string]uint32{}}
	for _, f := range u.Funcs {
		m.typeIndexOf(f.Signature())
	}
	if len(m.types) != 2 {
		t.Fatalf("types = %d, want 2 (entry and add)", len(m.types))
	}
}
