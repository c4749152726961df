package testkit

import (
	"keel/internal/ast"
	"keel/internal/types"
)

// Add exports add(a, b i32) i32.
func Add() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	fn := b.Func("add", i32)
	x := b.Param(fn, "a", i32)
	y := b.Param(fn, "b", i32)
	b.Body(fn, b.Return(b.Binary(i32, ast.OpAdd, b.Ref(fn, x), b.Ref(fn, y))))
	b.Decorate(fn, ast.Export("add"))
	return b.P
}

// Sum exports sum(n i32) i32 adding 0..n-1 in a while loop.
func Sum() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	boolean := b.Prim(types.Bool)
	fn := b.Func("sum", i32)
	n := b.Param(fn, "n", i32)
	s := b.Local(fn, "s", i32, true)
	i := b.Local(fn, "i", i32, true)
	b.Body(fn,
		b.Let(s, b.Int(i32, 0)),
		b.Let(i, b.Int(i32, 0)),
		b.While(b.Binary(boolean, ast.OpLt, b.Ref(fn, i), b.Ref(fn, n)),
			b.Assign(b.Ref(fn, s), b.Binary(i32, ast.OpAdd, b.Ref(fn, s), b.Ref(fn, i))),
			b.Assign(b.Ref(fn, i), b.Binary(i32, ast.OpAdd, b.Ref(fn, i), b.Int(i32, 1))),
		),
		b.Return(b.Ref(fn, s)),
	)
	b.Decorate(fn, ast.Export("sum"))
	return b.P
}

// Nested declares struct A { x i32 } and struct B { a A } and exports
// bx(v) returning B(A(v)).a.x.
func Nested() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	a := b.Struct("A")
	b.Field(a, "x", i32)
	tb := b.Struct("B")
	ta := b.Named(a)
	b.Field(tb, "a", ta)
	tB := b.Named(tb)
	fn := b.Func("bx", i32)
	v := b.Param(fn, "v", i32)
	local := b.Local(fn, "b", tB, false)
	b.Body(fn,
		b.Let(local, b.Construct(tB, b.Construct(ta, b.Ref(fn, v)))),
		b.Return(b.Member(i32, b.Member(ta, b.Ref(fn, local), "a"), "x")),
	)
	b.Decorate(fn, ast.Export("bx"))
	return b.P
}

// Counter declares a class with a constructor and a mutating method and
// exports count(k) calling inc(2) k times.
func Counter() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	boolean := b.Prim(types.Bool)
	cls := b.Class("Counter")
	b.Field(cls, "n", i32)
	tc := b.Named(cls)

	ctor := b.Constructor(cls)
	b.Body(ctor, b.Assign(b.Member(i32, b.Self(tc), "n"), b.Int(i32, 0)))

	inc := b.Method(cls, "inc", i32)
	by := b.Param(inc, "by", i32)
	self := func() ast.ExprID { return b.Member(i32, b.Self(tc), "n") }
	b.Body(inc,
		b.Assign(self(), b.Binary(i32, ast.OpAdd, self(), b.Ref(inc, by))),
		b.Return(self()),
	)

	fn := b.Func("count", i32)
	k := b.Param(fn, "k", i32)
	c := b.Local(fn, "c", tc, false)
	i := b.Local(fn, "i", i32, true)
	b.Body(fn,
		b.Let(c, b.Construct(tc)),
		b.Let(i, b.Int(i32, 0)),
		b.While(b.Binary(boolean, ast.OpLt, b.Ref(fn, i), b.Ref(fn, k)),
			b.ExprStmt(b.MethodCall(i32, b.Ref(fn, c), "inc", b.Int(i32, 2))),
			b.Assign(b.Ref(fn, i), b.Binary(i32, ast.OpAdd, b.Ref(fn, i), b.Int(i32, 1))),
		),
		b.Return(b.Member(i32, b.Ref(fn, c), "n")),
	)
	b.Decorate(fn, ast.Export("count"))
	return b.P
}

// Generic declares id<T>, struct Pair<T> { a T; b T } and mk(x) Pair<f64>
// and exports twice(x i64) and pairsum(x f64). mk returns two slots, so
// its second slot travels through scratch memory.
func Generic() *ast.Program {
	b := ast.NewBuilder()
	i64 := b.Prim(types.Int64)
	f64 := b.Prim(types.Float64)

	id := b.Func("id", b.TypeParam(0), "T")
	idx := b.Param(id, "x", b.TypeParam(0))
	b.Body(id, b.Return(b.Ref(id, idx)))

	twice := b.Func("twice", i64)
	tx := b.Param(twice, "x", i64)
	call := func() ast.ExprID { return b.CallGeneric(i64, id, []ast.TypeID{i64}, b.Ref(twice, tx)) }
	b.Body(twice, b.Return(b.Binary(i64, ast.OpAdd, call(), call())))
	b.Decorate(twice, ast.Export("twice"))

	pair := b.Struct("Pair", "T")
	b.Field(pair, "a", b.TypeParam(0))
	b.Field(pair, "b", b.TypeParam(0))
	pf := b.Named(pair, f64)

	mk := b.Func("mk", pf)
	mx := b.Param(mk, "x", f64)
	b.Body(mk, b.Return(b.Construct(pf, b.Ref(mk, mx), b.Binary(f64, ast.OpMul, b.Ref(mk, mx), b.Float(f64, 2)))))

	ps := b.Func("pairsum", f64)
	px := b.Param(ps, "x", f64)
	p := b.Local(ps, "p", pf, false)
	b.Body(ps,
		b.Let(p, b.Call(pf, mk, b.Ref(ps, px))),
		b.Return(b.Binary(f64, ast.OpAdd, b.Member(f64, b.Ref(ps, p), "a"), b.Member(f64, b.Ref(ps, p), "b"))),
	)
	b.Decorate(ps, ast.Export("pairsum"))
	return b.P
}

// FuncRef passes double by reference to apply and exports applied(x).
// triple is referenced too, so the table holds two entries in discovery
// order.
func FuncRef() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	boolean := b.Prim(types.Bool)
	ft := b.FuncType(i32, i32)

	double := b.Func("double", i32)
	dx := b.Param(double, "x", i32)
	b.Body(double, b.Return(b.Binary(i32, ast.OpMul, b.Ref(double, dx), b.Int(i32, 2))))

	triple := b.Func("triple", i32)
	tx := b.Param(triple, "x", i32)
	b.Body(triple, b.Return(b.Binary(i32, ast.OpMul, b.Ref(triple, tx), b.Int(i32, 3))))

	apply := b.Func("apply", i32)
	af := b.Param(apply, "f", ft)
	ax := b.Param(apply, "x", i32)
	b.Body(apply, b.Return(b.CallValue(i32, b.Ref(apply, af), b.Ref(apply, ax))))

	fn := b.Func("applied", i32)
	x := b.Param(fn, "x", i32)
	big := b.Param(fn, "big", boolean)
	f := b.Local(fn, "f", ft, true)
	b.Body(fn,
		b.Let(f, b.FuncRef(ft, double)),
		b.If(b.Ref(fn, big), []ast.StmtID{b.Assign(b.Ref(fn, f), b.FuncRef(ft, triple))}, nil),
		b.Return(b.Call(i32, apply, b.Ref(fn, f), b.Ref(fn, x))),
	)
	b.Decorate(fn, ast.Export("applied"))
	return b.P
}

// Hello calls the host: main runs puts("hello") and log(40 + 2). The string
// type is a two-slot struct of address and length.
func Hello() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	u32 := b.Prim(types.UInt32)
	void := b.Void()

	str := b.Struct("Str")
	b.Field(str, "data", b.Ptr(b.Prim(types.UInt8)))
	b.Field(str, "len", u32)
	ts := b.Named(str)

	puts := b.Func("puts", void)
	b.Param(puts, "s", ts)
	b.Extern(puts)
	b.Decorate(puts, ast.Foreign("puts"))

	log := b.Func("log", void)
	b.Param(log, "v", i32)
	b.Extern(log)
	b.Decorate(log, ast.Foreign("log"))

	b.Main(
		b.ExprStmt(b.Call(void, puts, b.Str(ts, "hello"))),
		b.ExprStmt(b.Call(void, log, b.Binary(i32, ast.OpAdd, b.Int(i32, 40), b.Int(i32, 2)))),
	)
	return b.P
}

// Globals keeps a mutable counter global initialised at startup and
// exports bump() incrementing it.
func Globals() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	g := b.Global("counter", i32, b.Int(i32, 10), true)
	fn := b.Func("bump", i32)
	b.Body(fn,
		b.Assign(b.GlobalRef(g), b.Binary(i32, ast.OpAdd, b.GlobalRef(g), b.Int(i32, 1))),
		b.Return(b.GlobalRef(g)),
	)
	b.Decorate(fn, ast.Export("bump"))
	return b.P
}

// Logic exports between(x, lo, hi) = lo <= x && x < hi and clamp(x) with
// an early return inside an if.
func Logic() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	boolean := b.Prim(types.Bool)

	fn := b.Func("between", boolean)
	x := b.Param(fn, "x", i32)
	lo := b.Param(fn, "lo", i32)
	hi := b.Param(fn, "hi", i32)
	b.Body(fn, b.Return(b.Binary(boolean, ast.OpLogAnd,
		b.Binary(boolean, ast.OpLe, b.Ref(fn, lo), b.Ref(fn, x)),
		b.Binary(boolean, ast.OpLt, b.Ref(fn, x), b.Ref(fn, hi)))))
	b.Decorate(fn, ast.Export("between"))

	cl := b.Func("clamp", i32)
	cx := b.Param(cl, "x", i32)
	b.Body(cl,
		b.If(b.Binary(boolean, ast.OpLt, b.Ref(cl, cx), b.Int(i32, 0)),
			[]ast.StmtID{b.Return(b.Int(i32, 0))}, nil),
		b.If(b.Binary(boolean, ast.OpGt, b.Ref(cl, cx), b.Int(i32, 100)),
			[]ast.StmtID{b.Return(b.Int(i32, 100))},
			[]ast.StmtID{b.Return(b.Ref(cl, cx))}),
	)
	b.Decorate(cl, ast.Export("clamp"))
	return b.P
}

// Loops exports skips(n i32) i32. The outer loop continues past i == 3 and
// the inner one counts j in 1..i, skipping j == 2 and breaking past i.
func Loops() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	boolean := b.Prim(types.Bool)
	fn := b.Func("skips", i32)
	n := b.Param(fn, "n", i32)
	count := b.Local(fn, "count", i32, true)
	i := b.Local(fn, "i", i32, true)
	j := b.Local(fn, "j", i32, true)
	ref := func(l ast.LocalID) ast.ExprID { return b.Ref(fn, l) }
	inc := func(l ast.LocalID) ast.StmtID {
		return b.Assign(ref(l), b.Binary(i32, ast.OpAdd, ref(l), b.Int(i32, 1)))
	}
	b.Body(fn,
		b.Let(count, b.Int(i32, 0)),
		b.Let(i, b.Int(i32, 0)),
		b.Let(j, b.Int(i32, 0)),
		b.While(b.Binary(boolean, ast.OpLt, ref(i), ref(n)),
			inc(i),
			b.If(b.Binary(boolean, ast.OpEq, ref(i), b.Int(i32, 3)), []ast.StmtID{b.Continue()}, nil),
			b.Assign(ref(j), b.Int(i32, 0)),
			b.While(b.Bool(boolean, true),
				inc(j),
				b.If(b.Binary(boolean, ast.OpGt, ref(j), ref(i)), []ast.StmtID{b.Break()}, nil),
				b.If(b.Binary(boolean, ast.OpEq, ref(j), b.Int(i32, 2)), []ast.StmtID{b.Continue()}, nil),
				inc(count),
			),
		),
		b.Return(ref(count)),
	)
	b.Decorate(fn, ast.Export("skips"))
	return b.P
}

// Operators declares struct V { x, y i32 } with a user + and exports
// vadd(a, b) returning (V(a, b) + V(10, 20)) packed as x*100 + y.
func Operators() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	v := b.Struct("V")
	b.Field(v, "x", i32)
	b.Field(v, "y", i32)
	tv := b.Named(v)

	plus := b.OperatorFunc(v, ast.OpAdd, tv)
	o := b.Param(plus, "o", tv)
	field := func(x ast.ExprID, name string) ast.ExprID { return b.Member(i32, x, name) }
	b.Body(plus, b.Return(b.Construct(tv,
		b.Binary(i32, ast.OpAdd, field(b.Self(tv), "x"), field(b.Ref(plus, o), "x")),
		b.Binary(i32, ast.OpAdd, field(b.Self(tv), "y"), field(b.Ref(plus, o), "y")),
	)))

	fn := b.Func("vadd", i32)
	x := b.Param(fn, "a", i32)
	y := b.Param(fn, "b", i32)
	r := b.Local(fn, "r", tv, false)
	b.Body(fn,
		b.Let(r, b.OperatorCall(tv, ast.OpAdd,
			b.Construct(tv, b.Ref(fn, x), b.Ref(fn, y)),
			b.Construct(tv, b.Int(i32, 10), b.Int(i32, 20)))),
		b.Return(b.Binary(i32, ast.OpAdd,
			b.Binary(i32, ast.OpMul, field(b.Ref(fn, r), "x"), b.Int(i32, 100)),
			field(b.Ref(fn, r), "y"))),
	)
	b.Decorate(fn, ast.Export("vadd"))
	return b.P
}

// Unary exports neg(i32), fneg(f64), bitnot(i32) and not(bool).
func Unary() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	f64 := b.Prim(types.Float64)
	boolean := b.Prim(types.Bool)
	for _, u := range []struct {
		name string
		t    ast.TypeID
		op   ast.Op
	}{
		{"neg", i32, ast.OpNeg},
		{"fneg", f64, ast.OpNeg},
		{"bitnot", i32, ast.OpBitNot},
		{"not", boolean, ast.OpNot},
	} {
		fn := b.Func(u.name, u.t)
		x := b.Param(fn, "x", u.t)
		b.Body(fn, b.Return(b.Unary(u.t, u.op, b.Ref(fn, x))))
		b.Decorate(fn, ast.Export(u.name))
	}
	return b.P
}

// Pointers exports triple1(v) which boxes v on the heap, scales it through
// the pointer, copies into a second box and returns 3v + 1.
func Pointers() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	pi := b.Ptr(i32)
	fn := b.Func("triple1", i32)
	v := b.Param(fn, "v", i32)
	p := b.Local(fn, "p", pi, false)
	q := b.Local(fn, "q", pi, false)
	at := func(l ast.LocalID) ast.ExprID { return b.Deref(i32, b.Ref(fn, l)) }
	b.Body(fn,
		b.Let(p, b.Alloc(pi, b.Ref(fn, v))),
		b.Assign(at(p), b.Binary(i32, ast.OpMul, at(p), b.Int(i32, 3))),
		b.Let(q, b.Alloc(pi, ast.NoExprID)),
		b.Assign(at(q), b.Binary(i32, ast.OpAdd, at(p), b.Int(i32, 1))),
		b.Return(at(q)),
	)
	b.Decorate(fn, ast.Export("triple1"))
	return b.P
}

// Nulls exports isnull(box bool) reporting whether a pointer left at null
// (or replaced by a fresh allocation when box is set) is still null.
func Nulls() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	boolean := b.Prim(types.Bool)
	pi := b.Ptr(i32)
	fn := b.Func("isnull", boolean)
	box := b.Param(fn, "box", boolean)
	p := b.Local(fn, "p", pi, true)
	b.Body(fn,
		b.Let(p, b.Null(pi)),
		b.If(b.Ref(fn, box), []ast.StmtID{b.Assign(b.Ref(fn, p), b.Alloc(pi, b.Int(i32, 1)))}, nil),
		b.Return(b.Binary(boolean, ast.OpEq, b.Ref(fn, p), b.Null(pi))),
	)
	b.Decorate(fn, ast.Export("isnull"))
	return b.P
}

// Kept exports answer() and declares two unreferenced functions that are
// compiled anyway: kept through the compile decorator and rooted through
// the program roots.
func Kept() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	kept := b.Func("kept", i32)
	b.Body(kept, b.Return(b.Int(i32, 1)))
	b.Decorate(kept, ast.CompileAlways())
	rooted := b.Func("rooted", i32)
	b.Body(rooted, b.Return(b.Int(i32, 2)))
	b.Root(rooted)
	fn := b.Func("answer", i32)
	b.Body(fn, b.Return(b.Int(i32, 42)))
	b.Decorate(fn, ast.Export("answer"))
	return b.P
}

// HostRef exports relay(x) calling the foreign log through a function
// value twice, with x and x + 1, and returning x.
func HostRef() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	void := b.Void()
	ft := b.FuncType(void, i32)

	log := b.Func("log", void)
	b.Param(log, "v", i32)
	b.Extern(log)
	b.Decorate(log, ast.Foreign("log"))

	fn := b.Func("relay", i32)
	x := b.Param(fn, "x", i32)
	f := b.Local(fn, "f", ft, false)
	b.Body(fn,
		b.Let(f, b.FuncRef(ft, log)),
		b.ExprStmt(b.CallValue(void, b.Ref(fn, f), b.Ref(fn, x))),
		b.ExprStmt(b.CallValue(void, b.Ref(fn, f), b.Binary(i32, ast.OpAdd, b.Ref(fn, x), b.Int(i32, 1)))),
		b.Return(b.Ref(fn, x)),
	)
	b.Decorate(fn, ast.Export("relay"))
	return b.P
}

// Natives binds the sqrt and abs intrinsics and exports root(f64) and
// magnitude(i32) wrapping them.
func Natives() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	f64 := b.Prim(types.Float64)
	intrinsic := func(name string, t ast.TypeID) ast.DeclID {
		fn := b.Func(name, t)
		b.Param(fn, "x", t)
		b.Extern(fn)
		b.Decorate(fn, ast.Native())
		return fn
	}
	sqrt := intrinsic("sqrt", f64)
	abs := intrinsic("abs", i32)
	wrap := func(name string, t ast.TypeID, native ast.DeclID) {
		fn := b.Func(name, t)
		x := b.Param(fn, "x", t)
		b.Body(fn, b.Return(b.Call(t, native, b.Ref(fn, x))))
		b.Decorate(fn, ast.Export(name))
	}
	wrap("root", f64, sqrt)
	wrap("magnitude", i32, abs)
	return b.P
}

// Cycle declares struct A { b B } and struct B { a A } and uses A, which
// cannot be laid out.
func Cycle() *ast.Program {
	b := ast.NewBuilder()
	i32 := b.Prim(types.Int32)
	a := b.Struct("A")
	bb := b.Struct("B")
	b.Field(a, "b", b.Named(bb))
	b.Field(bb, "a", b.Named(a))
	fn := b.Func("use", i32)
	b.Param(fn, "a", b.Named(a))
	b.Body(fn, b.Return(b.Int(i32, 0)))
	b.Decorate(fn, ast.Export("use"))
	return b.P
}

// Fixtures lists every runnable fixture by name.
func Fixtures() map[string]func() *ast.Program {
	return map[string]func() *ast.Program{
		"add":       Add,
		"sum":       Sum,
		"nested":    Nested,
		"counter":   Counter,
		"generic":   Generic,
		"funcref":   FuncRef,
		"hello":     Hello,
		"globals":   Globals,
		"logic":     Logic,
		"loops":     Loops,
		"operators": Operators,
		"unary":     Unary,
		"pointers":  Pointers,
		"nulls":     Nulls,
		"kept":      Kept,
		"hostref":   HostRef,
		"natives":   Natives,
	}
}
