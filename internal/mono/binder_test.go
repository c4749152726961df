package mono

import (
	"testing"

	"keel/internal/ast"
	"keel/internal/types"
)

func TestResolveGenericAggregate(t *testing.T) {
	b := ast.NewBuilder()
	pair := b.Struct("Pair", "A", "B")
	b.Field(pair, "first", b.TypeParam(0))
	b.Field(pair, "second", b.TypeParam(1))
	swap := b.Method(pair, "swap", b.Named(pair, b.TypeParam(1), b.TypeParam(0)))

	spec := types.NewSpecializer()
	binder := NewBinder(b.P, spec)
	i32 := spec.Prim(types.Int32)
	f64 := spec.Prim(types.Float64)

	te := b.Named(pair, b.Prim(types.Int32), b.Prim(types.Float64))
	h := binder.Resolve(te, nil)
	if again := binder.Instance(pair, []types.Handle{i32, f64}); again != h {
		t.Fatalf("same instantiation produced %d and %d", h, again)
	}
	other := binder.Instance(pair, []types.Handle{f64, i32})
	if other == h {
		t.Fatalf("argument order must matter")
	}
	pt := spec.Get(h)
	if pt.Name != "Pair<i32,f64>" {
		t.Fatalf("name = %q", pt.Name)
	}
	if len(pt.Members) != 2 || pt.Members[0].Type != i32 || pt.Members[1].Type != f64 {
		t.Fatalf("members = %+v", pt.Members)
	}
	if d, ok := pt.Method("swap"); !ok || ast.DeclID(d) != swap {
		t.Fatalf("swap lookup = %d, %v", d, ok)
	}
}

func TestResolveParamInScope(t *testing.T) {
	b := ast.NewBuilder()
	spec := types.NewSpecializer()
	binder := NewBinder(b.P, spec)
	u8 := spec.Prim(types.UInt8)

	ptr := b.Ptr(b.TypeParam(0))
	if got := binder.Resolve(ptr, []types.Handle{u8}); got != spec.Pointer(u8) {
		t.Fatalf("resolved %d", got)
	}
	fn := b.FuncType(b.Void(), b.TypeParam(0))
	ft := spec.Get(binder.Resolve(fn, []types.Handle{u8}))
	if ft.Kind != types.KindFunc || ft.Result != types.Void || ft.Params[0] != u8 {
		t.Fatalf("func type %+v", ft)
	}
	if binder.Resolve(ast.NoTypeID, nil) != types.Void {
		t.Fatalf("missing type must be void")
	}
}

func TestValueDepsSkipIndirection(t *testing.T) {
	b := ast.NewBuilder()
	inner := b.Struct("Inner")
	b.Field(inner, "x", b.Prim(types.Int32))
	node := b.Class("Node")
	outer := b.Struct("Outer")
	b.Field(outer, "in", b.Named(inner))
	b.Field(outer, "ref", b.Named(node))
	b.Field(outer, "self", b.Ptr(b.Named(outer)))

	spec := types.NewSpecializer()
	binder := NewBinder(b.P, spec)
	ot := spec.Get(binder.Instance(outer, nil))
	if len(ot.Deps) != 1 || ot.Deps[0] != binder.Instance(inner, nil) {
		t.Fatalf("deps = %v", ot.Deps)
	}
	if spec.KindOf(binder.Instance(node, nil)) != types.KindClass {
		t.Fatalf("Node must be a class")
	}
}
