package ssa

import (
	"testing"

	"keel/internal/ir"
	"keel/internal/types"
)

// countLoop builds:
//
//	i = 0
//	loop { if i >= n break; i = i + 1 }
//	return i
func countLoop() (*ir.Function, ir.BlockID, ir.BlockID) {
	f := ir.NewFunction("count", []types.Prim{types.Int32}, types.Int32)
	i := f.NewVar(types.Int32)
	one := f.NewVar(types.Int32)
	done := f.NewVar(types.Bool)
	init := f.NewBlock(ir.BlockBasic)
	init.Instrs = []ir.Instr{{Op: ir.OpConst, Dst: []ir.Var{i}, Storage: types.Int32}}
	loop := f.NewBlock(ir.BlockLoop)
	head := f.NewBlock(ir.BlockBasic)
	head.Instrs = []ir.Instr{
		{Op: ir.OpGe, Dst: []ir.Var{done}, Args: []ir.Var{i, 0}, Storage: types.Int32},
		{Op: ir.OpBreakIf, Args: []ir.Var{done}, Target: loop.ID},
		{Op: ir.OpConst, Dst: []ir.Var{one}, Storage: types.Int32, Imm: 1},
		{Op: ir.OpAdd, Dst: []ir.Var{i}, Args: []ir.Var{i, one}, Storage: types.Int32},
	}
	loop.Body = []ir.BlockID{head.ID}
	tail := f.NewBlock(ir.BlockBasic)
	tail.Instrs = []ir.Instr{{Op: ir.OpReturn, Args: []ir.Var{i}}}
	f.Body = []ir.BlockID{init.ID, loop.ID, tail.ID}
	return f, loop.ID, head.ID
}

// diamond builds: x = c ? 1 : 2; return x
func diamond() *ir.Function {
	f := ir.NewFunction("pick", []types.Prim{types.Bool}, types.Int32)
	x := f.NewVar(types.Int32)
	br := f.NewBlock(ir.BlockIfElse)
	br.Cond = 0
	then := f.NewBlock(ir.BlockBasic)
	then.Instrs = []ir.Instr{{Op: ir.OpConst, Dst: []ir.Var{x}, Storage: types.Int32, Imm: 1}}
	els := f.NewBlock(ir.BlockBasic)
	els.Instrs = []ir.Instr{{Op: ir.OpConst, Dst: []ir.Var{x}, Storage: types.Int32, Imm: 2}}
	br.Body = []ir.BlockID{then.ID}
	br.Else = []ir.BlockID{els.ID}
	join := f.NewBlock(ir.BlockBasic)
	join.Instrs = []ir.Instr{{Op: ir.OpReturn, Args: []ir.Var{x}}}
	f.Body = []ir.BlockID{br.ID, join.ID}
	return f
}

func assertSingleAssignment(t *testing.T, f *ir.Function) {
	t.Helper()
	seen := make(map[ir.Var]bool)
	for i := range f.Params {
		seen[ir.Var(i)] = true
	}
	f.Walk(func(b *ir.Block) {
		for _, in := range b.Instrs {
			for _, d := range in.Dst {
				if seen[d] {
					t.Fatalf("v%d assigned twice in %s", d, f.Name)
				}
				seen[d] = true
			}
		}
	})
}

func phis(b *ir.Block) []ir.Instr {
	var out []ir.Instr
	for _, in := range b.Instrs {
		if in.Op == ir.OpPhi {
			out = append(out, in)
		}
	}
	return out
}

func TestGraphEdges(t *testing.T) {
	f, loop, head := countLoop()
	g := Build(f)
	if g.Entry != f.Body[0] {
		t.Fatalf("entry = %d, want %d", g.Entry, f.Body[0])
	}
	sites := map[Site]int{}
	for _, e := range g.Preds[head] {
		sites[e.Site]++
	}
	if sites[SiteEnter] != 1 || sites[SiteFallthrough] != 1 {
		t.Fatalf("loop head preds = %v, want one enter and one back edge", g.Preds[head])
	}
	tail := f.Body[2]
	if len(g.Preds[tail]) != 1 || g.Preds[tail][0].Site != SiteBranch || g.Preds[tail][0].Instr != 1 {
		t.Fatalf("exit preds = %v, want the break_if", g.Preds[tail])
	}
	if !g.Reachable(loop) || len(g.Order) != 4 {
		t.Fatalf("order = %v", g.Order)
	}
}

func TestConvertLoopPlacesPhiAndEdgeCopies(t *testing.T) {
	f, loop, head := countLoop()
	Convert(f)
	assertSingleAssignment(t, f)
	ps := phis(f.Block(head))
	if len(ps) != 1 {
		t.Fatalf("loop head phis = %d, want 1", len(ps))
	}
	phi := ps[0].Dst[0]
	if got := f.Block(loop).EntryCopies; len(got) != 1 || got[0].Dst != phi {
		t.Fatalf("entry copies = %v, want one into v%d", got, phi)
	}
	if got := f.Block(head).ExitCopies; len(got) != 1 || got[0].Dst != phi {
		t.Fatalf("back edge copies = %v, want one into v%d", got, phi)
	}
	ret := f.Block(f.Body[2]).Instrs[0]
	if ret.Args[0] != phi {
		t.Fatalf("return reads v%d, want the phi v%d", ret.Args[0], phi)
	}
}

func TestConvertDiamond(t *testing.T) {
	f := diamond()
	Convert(f)
	assertSingleAssignment(t, f)
	join := f.Block(f.Body[1])
	ps := phis(join)
	if len(ps) != 1 || len(ps[0].Args) != 2 {
		t.Fatalf("join phis = %+v", ps)
	}
	br := f.Block(f.Body[0])
	for _, id := range append(br.Body, br.Else...) {
		if cs := f.Block(id).ExitCopies; len(cs) != 1 || cs[0].Dst != ps[0].Dst[0] {
			t.Fatalf("arm %d copies = %v", id, cs)
		}
	}
	if join.Instrs[1].Args[0] != ps[0].Dst[0] {
		t.Fatalf("return does not read the phi")
	}
}

func TestConvertIfWithoutElseCopiesAround(t *testing.T) {
	f := ir.NewFunction("clamp", []types.Prim{types.Int32}, types.Int32)
	neg := f.NewVar(types.Bool)
	zero := f.NewVar(types.Int32)
	x := f.NewVar(types.Int32)
	pre := f.NewBlock(ir.BlockBasic)
	pre.Instrs = []ir.Instr{
		{Op: ir.OpCopy, Dst: []ir.Var{x}, Args: []ir.Var{0}},
		{Op: ir.OpConst, Dst: []ir.Var{zero}, Storage: types.Int32},
		{Op: ir.OpLt, Dst: []ir.Var{neg}, Args: []ir.Var{0, zero}, Storage: types.Int32},
	}
	br := f.NewBlock(ir.BlockIf)
	br.Cond = neg
	body := f.NewBlock(ir.BlockBasic)
	body.Instrs = []ir.Instr{{Op: ir.OpCopy, Dst: []ir.Var{x}, Args: []ir.Var{zero}}}
	br.Body = []ir.BlockID{body.ID}
	post := f.NewBlock(ir.BlockBasic)
	post.Instrs = []ir.Instr{{Op: ir.OpReturn, Args: []ir.Var{x}}}
	f.Body = []ir.BlockID{pre.ID, br.ID, post.ID}

	Convert(f)
	assertSingleAssignment(t, f)
	if br.Cond == neg {
		t.Fatalf("condition was not renamed")
	}
	if len(br.AroundCopies) != 1 || len(body.ExitCopies) != 1 {
		t.Fatalf("around = %v, body exit = %v", br.AroundCopies, body.ExitCopies)
	}
}

func TestPruneRemovesDeadCode(t *testing.T) {
	f := ir.NewFunction("dead", []types.Prim{types.Int32}, types.Int32)
	unused := f.NewVar(types.Int32)
	res := f.NewVar(types.Int32)
	b := f.NewBlock(ir.BlockBasic)
	b.Instrs = []ir.Instr{
		{Op: ir.OpAdd, Dst: []ir.Var{unused}, Args: []ir.Var{0, 0}, Storage: types.Int32},
		{Op: ir.OpCall, Dst: []ir.Var{res}, Args: []ir.Var{0}, Callee: "effect"},
		{Op: ir.OpReturn, Args: []ir.Var{0}},
	}
	after := f.NewBlock(ir.BlockBasic)
	after.Instrs = []ir.Instr{{Op: ir.OpUnreachable}}
	f.Body = []ir.BlockID{b.ID, after.ID}

	st := Run(f)
	if len(f.Body) != 1 {
		t.Fatalf("unreachable block kept: %v", f.Body)
	}
	if len(b.Instrs) != 2 || b.Instrs[0].Op != ir.OpCall {
		t.Fatalf("instrs = %+v", b.Instrs)
	}
	if st.Instrs != 1 || st.Blocks != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPruneKeepsLoopCarriedValues(t *testing.T) {
	f, loop, head := countLoop()
	Run(f)
	if err := ir.ValidateFunction(f); err != nil {
		t.Fatalf("invalid after prune: %v", err)
	}
	if len(phis(f.Block(head))) != 1 || len(f.Block(loop).EntryCopies) != 1 {
		t.Fatalf("loop-carried value pruned")
	}
}

func TestPruneDropsUnusedPhi(t *testing.T) {
	f := diamond()
	join := f.Block(f.Body[1])
	join.Instrs = []ir.Instr{{Op: ir.OpReturn, Args: []ir.Var{0}}}
	Run(f)
	br := f.Block(f.Body[0])
	if len(br.Body) != 0 || len(br.Else) != 0 {
		t.Fatalf("empty arms kept: %v %v", br.Body, br.Else)
	}
	if len(phis(f.Block(f.Body[1]))) != 0 {
		t.Fatalf("dead phi kept")
	}
}
