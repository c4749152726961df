package lower

import (
	"context"
	"slices"
	"strings"
	"testing"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/layout"
	"keel/internal/mono"
	"keel/internal/sched"
	"keel/internal/testkit"
	"keel/internal/types"
)

func lowerProgram(t *testing.T, prog *ast.Program) (*ir.Unit, *diag.Bag) {
	t.Helper()
	spec := types.NewSpecializer()
	binder := mono.NewBinder(prog, spec)
	resolver := layout.New(spec)
	bag := diag.NewBag(0)
	rep := diag.BagReporter{Bag: bag}
	plan := sched.New(binder, resolver, rep, sched.Options{}).Run(context.Background())
	resolver.Resolve(rep)
	if bag.HasErrors() {
		t.Fatalf("scheduling failed: %+v", bag.Items())
	}
	u := Lower(context.Background(), plan, binder, rep, Options{})
	return u, bag
}

func mustLower(t *testing.T, prog *ast.Program) *ir.Unit {
	t.Helper()
	u, bag := lowerProgram(t, prog)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	if err := ir.Validate(u); err != nil {
		t.Fatalf("invalid unit: %v", err)
	}
	return u
}

func names(u *ir.Unit) []string {
	out := make([]string, 0, len(u.Funcs))
	for _, f := range u.Funcs {
		out = append(out, f.Name)
	}
	return out
}

func TestLowerAddSignature(t *testing.T) {
	u := mustLower(t, testkit.Add())
	if !slices.Equal(names(u), []string{ir.EntryFunc, "add"}) {
		t.Fatalf("functions = %v", names(u))
	}
	add := u.Func("add")
	if add.Export != "add" {
		t.Fatalf("export = %q", add.Export)
	}
	sig := add.Signature()
	if !slices.Equal(sig.Params, []types.Prim{types.Int32, types.Int32}) || sig.Result != types.Int32 {
		t.Fatalf("signature = %+v", sig)
	}
	entry := u.Func(ir.EntryFunc)
	if u.Entry != ir.EntryFunc || entry.Export != ir.EntryAlias {
		t.Fatalf("entry %q exported as %q", u.Entry, entry.Export)
	}
}

func TestLowerTableFollowsDiscovery(t *testing.T) {
	u := mustLower(t, testkit.FuncRef())
	if !slices.Equal(u.Table, []string{"double", "triple"}) {
		t.Fatalf("table = %v", u.Table)
	}
	for _, name := range u.Table {
		if !u.Func(name).InTable {
			t.Fatalf("%s not flagged as table function", name)
		}
	}
	if u.Func("apply").InTable {
		t.Fatal("apply is only called directly")
	}
}

func TestLowerForeignBecomesImport(t *testing.T) {
	u := mustLower(t, testkit.Hello())
	if len(u.Imports) != 2 {
		t.Fatalf("imports = %+v", u.Imports)
	}
	puts := u.Import("puts")
	if puts == nil || puts.Symbol != "puts" {
		t.Fatalf("puts import = %+v", puts)
	}
	// Str{data, len} flattens to two native parameters.
	if !slices.Equal(puts.Sig.Params, []types.Prim{types.PtrPrim, types.UInt32}) {
		t.Fatalf("puts params = %v", puts.Sig.Params)
	}
	if u.Func("puts") != nil {
		t.Fatal("foreign function must not get a body")
	}
	if len(u.Segments) != 1 || string(u.Segments[0].Data) != "hello" {
		t.Fatalf("segments = %+v", u.Segments)
	}
}

func TestLowerMultiSlotResultUsesScratch(t *testing.T) {
	u := mustLower(t, testkit.Generic())
	if len(u.Scratch) != 1 || u.Scratch[0] != (ir.Scratch{Position: 1, Prim: types.Float64}) {
		t.Fatalf("scratch = %+v", u.Scratch)
	}
	mk := u.Func("mk")
	if mk == nil || mk.Result != types.Float64 {
		t.Fatalf("mk = %+v", mk)
	}
}

func TestLowerGlobalsAndAllocator(t *testing.T) {
	u := mustLower(t, testkit.Globals())
	if len(u.Globals) != 1 || u.Globals[0].Name != "counter" || !u.Globals[0].Mutable || u.Globals[0].Size != 4 {
		t.Fatalf("globals = %+v", u.Globals)
	}
	if u.Func(ir.AllocFunc) != nil {
		t.Fatal("allocator emitted without heap use")
	}

	u = mustLower(t, testkit.Counter())
	if u.Func(ir.AllocFunc) == nil {
		t.Fatal("class construction needs the allocator")
	}
}

func TestLowerRejectsFloatRemainder(t *testing.T) {
	b := ast.NewBuilder()
	f64 := b.Prim(types.Float64)
	fn := b.Func("fmod", f64)
	x := b.Param(fn, "x", f64)
	y := b.Param(fn, "y", f64)
	b.Body(fn, b.Return(b.Binary(f64, ast.OpRem, b.Ref(fn, x), b.Ref(fn, y))))
	b.Decorate(fn, ast.Export("fmod"))

	_, bag := lowerProgram(t, b.P)
	if !bag.HasCode(diag.LowerUnsupported) {
		t.Fatalf("expected %s, got %+v", diag.LowerUnsupported.ID(), bag.Items())
	}
}

func TestLowerStringSegmentsAreShared(t *testing.T) {
	u := mustLower(t, stringPair("shared", "shared"))
	if len(u.Segments) != 1 {
		t.Fatalf("segments = %+v", u.Segments)
	}
}

func TestLowerStringLiteralsKeepTheirBytes(t *testing.T) {
	decomposed, composed := "e\u0301", "\u00e9"
	u, bag := lowerProgram(t, stringPair(decomposed, composed))
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %+v", bag.Items())
	}
	if len(u.Segments) != 2 {
		t.Fatalf("segments = %+v", u.Segments)
	}
	if string(u.Segments[0].Data) != decomposed || string(u.Segments[1].Data) != composed {
		t.Fatalf("segments = %q, %q", u.Segments[0].Data, u.Segments[1].Data)
	}
	if err := ir.Validate(u); err != nil {
		t.Fatalf("invalid unit: %v", err)
	}
}

func TestLowerWarnsAboutDecomposedLiterals(t *testing.T) {
	_, bag := lowerProgram(t, stringPair("cafe\u0301", "caf\u00e9"))
	items := bag.Items()
	if len(items) != 1 {
		t.Fatalf("diagnostics = %+v", items)
	}
	d := items[0]
	if d.Code != diag.LowerStringNotNFC || d.Severity != diag.SevWarning {
		t.Fatalf("diagnostic = %+v", d)
	}
	if len(d.Notes) != 1 || !strings.Contains(d.Notes[0].Msg, "caf\u00e9") {
		t.Fatalf("notes = %+v", d.Notes)
	}
}

// stringPair exports size() returning the summed byte lengths of two
// string literals.
func stringPair(first, second string) *ast.Program {
	b := ast.NewBuilder()
	u32 := b.Prim(types.UInt32)
	str := b.Struct("Str")
	b.Field(str, "data", b.Ptr(b.Prim(types.UInt8)))
	b.Field(str, "len", u32)
	ts := b.Named(str)

	fn := b.Func("size", u32)
	a := b.Local(fn, "a", ts, false)
	c := b.Local(fn, "c", ts, false)
	b.Body(fn,
		b.Let(a, b.Str(ts, first)),
		b.Let(c, b.Str(ts, second)),
		b.Return(b.Binary(u32, ast.OpAdd, b.Member(u32, b.Ref(fn, a), "len"), b.Member(u32, b.Ref(fn, c), "len"))),
	)
	b.Decorate(fn, ast.Export("size"))
	return b.P
}
