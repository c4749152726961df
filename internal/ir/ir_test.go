package ir

import (
	"strings"
	"testing"

	"keel/internal/types"
)

func loopFunction() *Function {
	f := NewFunction("count", []types.Prim{types.Int32}, types.Int32)
	loop := f.NewBlock(BlockLoop)
	head := f.NewBlock(BlockBasic)
	zero := f.NewVar(types.Int32)
	done := f.NewVar(types.Bool)
	head.Instrs = []Instr{
		{Op: OpConst, Dst: []Var{zero}, Storage: types.Int32},
		{Op: OpEq, Dst: []Var{done}, Args: []Var{0, zero}, Storage: types.Int32},
		{Op: OpBreakIf, Args: []Var{done}, Target: loop.ID},
	}
	loop.Body = []BlockID{head.ID}
	tail := f.NewBlock(BlockBasic)
	tail.Instrs = []Instr{{Op: OpReturn, Args: []Var{0}}}
	f.Body = []BlockID{loop.ID, tail.ID}
	return f
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	if err := ValidateFunction(loopFunction()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsStrayBranch(t *testing.T) {
	f := loopFunction()
	tail := f.Block(f.Body[1])
	tail.Instrs = append([]Instr{{Op: OpBreak, Target: f.Body[0]}}, tail.Instrs...)
	tail.Instrs = append(tail.Instrs, Instr{Op: OpCopy, Dst: []Var{99}, Args: []Var{0}})
	err := ValidateFunction(f)
	if err == nil {
		t.Fatalf("expected errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "does not enclose") || !strings.Contains(msg, "v99") {
		t.Fatalf("unexpected error text: %v", msg)
	}
}

func TestUnitDeduplication(t *testing.T) {
	u := NewUnit()
	a := u.Segment([]byte("hi"))
	b := u.Segment([]byte("there"))
	if a == b || u.Segment([]byte("hi")) != a {
		t.Fatalf("segments not deduplicated by content: %d %d", a, b)
	}
	s := u.ScratchSlot(1, types.Float64)
	if u.ScratchSlot(1, types.Float64) != s || u.ScratchSlot(1, types.Int32) == s {
		t.Fatalf("scratch slots keyed by (position, prim)")
	}
	if u.TableSlot("f") != 0 || u.TableSlot("g") != 1 || u.TableSlot("f") != 0 {
		t.Fatalf("table slots must keep discovery order")
	}
}

func TestDumpFunction(t *testing.T) {
	var sb strings.Builder
	if err := DumpFunction(&sb, loopFunction()); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := sb.String()
	for _, want := range []string{"func count(i32) i32", "loop", "break_if b1 v2", "; bool", "return v0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
}
