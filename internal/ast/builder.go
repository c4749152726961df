package ast

import (
	"keel/internal/source"
	"keel/internal/types"
)

// Builder assembles a checked Program in memory. Tests and fixtures use it in
// place of the external checker; it performs no validation of its own.
type Builder struct {
	P *Program
}

func NewBuilder() *Builder {
	return &Builder{P: NewProgram()}
}

// Type expressions

func (b *Builder) typ(t TypeExpr) TypeID {
	return TypeID(b.P.Types.Allocate(t))
}

func (b *Builder) Void() TypeID                  { return b.typ(TypeExpr{Kind: TypeVoid}) }
func (b *Builder) Prim(p types.Prim) TypeID      { return b.typ(TypeExpr{Kind: TypePrim, Prim: p}) }
func (b *Builder) Ptr(elem TypeID) TypeID        { return b.typ(TypeExpr{Kind: TypePointer, Elem: elem}) }
func (b *Builder) TypeParam(index uint32) TypeID { return b.typ(TypeExpr{Kind: TypeParam, Index: index}) }

func (b *Builder) Named(decl DeclID, args ...TypeID) TypeID {
	return b.typ(TypeExpr{Kind: TypeNamed, Decl: decl, Args: args})
}

func (b *Builder) FuncType(result TypeID, params ...TypeID) TypeID {
	return b.typ(TypeExpr{Kind: TypeFunc, Args: params, Elem: result})
}

// Declarations

func (b *Builder) decl(d Decl) DeclID {
	return DeclID(b.P.Decls.Allocate(d))
}

func (b *Builder) Struct(name string, generics ...string) DeclID {
	return b.decl(Decl{Kind: DeclStruct, Name: name, Generics: generics, Aggregate: &AggregateData{}})
}

func (b *Builder) Class(name string, generics ...string) DeclID {
	return b.decl(Decl{Kind: DeclClass, Name: name, Generics: generics, Aggregate: &AggregateData{}})
}

func (b *Builder) Field(agg DeclID, name string, t TypeID) {
	d := b.P.Decl(agg)
	d.Aggregate.Fields = append(d.Aggregate.Fields, Field{Name: name, Type: t})
}

func (b *Builder) Func(name string, result TypeID, generics ...string) DeclID {
	return b.decl(Decl{
		Kind:     DeclFunc,
		Name:     name,
		Generics: generics,
		Func:     &FuncData{Kind: FuncPlain, Result: result, HasBody: true},
	})
}

func (b *Builder) member(owner DeclID, kind FuncKind, name string, op Op, result TypeID) DeclID {
	id := b.decl(Decl{
		Kind: DeclFunc,
		Name: name,
		Func: &FuncData{Kind: kind, Owner: owner, Op: op, Result: result, HasBody: true},
	})
	agg := b.P.Decl(owner).Aggregate
	switch kind {
	case FuncMethod:
		agg.Methods = append(agg.Methods, id)
	case FuncOperator:
		agg.Operators = append(agg.Operators, id)
	case FuncConstructor:
		agg.Init = id
	case FuncPlain:
	}
	return id
}

func (b *Builder) Method(owner DeclID, name string, result TypeID) DeclID {
	return b.member(owner, FuncMethod, name, OpNone, result)
}

func (b *Builder) OperatorFunc(owner DeclID, op Op, result TypeID) DeclID {
	return b.member(owner, FuncOperator, op.String(), op, result)
}

// Constructor declares the user initializer of owner. Its body sees self.
func (b *Builder) Constructor(owner DeclID) DeclID {
	return b.member(owner, FuncConstructor, "init", OpNone, NoTypeID)
}

func (b *Builder) Global(name string, t TypeID, init ExprID, mutable bool) DeclID {
	return b.decl(Decl{Kind: DeclGlobal, Name: name, Global: &GlobalData{Type: t, Init: init, Mutable: mutable}})
}

func (b *Builder) Decorate(d DeclID, decs ...Decorator) {
	decl := b.P.Decl(d)
	decl.Decorators = append(decl.Decorators, decs...)
}

// Extern marks fn as bodiless (foreign or native).
func (b *Builder) Extern(fn DeclID) {
	b.P.Decl(fn).Func.HasBody = false
}

func (b *Builder) Root(fn DeclID) {
	b.P.Roots = append(b.P.Roots, fn)
}

func (b *Builder) local(fn DeclID, l Local) LocalID {
	if !fn.IsValid() {
		b.P.MainLocals = append(b.P.MainLocals, l)
		return LocalID(len(b.P.MainLocals) - 1)
	}
	f := b.P.Decl(fn).Func
	f.Locals = append(f.Locals, l)
	return LocalID(len(f.Locals) - 1)
}

func (b *Builder) Param(fn DeclID, name string, t TypeID) LocalID {
	id := b.local(fn, Local{Name: name, Type: t, Kind: LocalParam})
	f := b.P.Decl(fn).Func
	f.Params = append(f.Params, id)
	return id
}

// Local declares a let (const) or var binding in fn, or at top level when fn
// is NoDeclID.
func (b *Builder) Local(fn DeclID, name string, t TypeID, mutable bool) LocalID {
	kind := LocalConst
	if mutable {
		kind = LocalVar
	}
	return b.local(fn, Local{Name: name, Type: t, Kind: kind})
}

func (b *Builder) Body(fn DeclID, stmts ...StmtID) {
	f := b.P.Decl(fn).Func
	f.Body = append(f.Body, stmts...)
}

func (b *Builder) Main(stmts ...StmtID) {
	b.P.Main = append(b.P.Main, stmts...)
}

// Statements

func (b *Builder) stmt(s Stmt) StmtID {
	return StmtID(b.P.Stmts.Allocate(s))
}

func (b *Builder) ExprStmt(e ExprID) StmtID { return b.stmt(Stmt{Kind: StmtExpr, Expr: e}) }

func (b *Builder) Let(local LocalID, init ExprID) StmtID {
	return b.stmt(Stmt{Kind: StmtLet, Local: local, Expr: init})
}

func (b *Builder) Assign(target, value ExprID) StmtID {
	return b.stmt(Stmt{Kind: StmtAssign, Target: target, Expr: value})
}

func (b *Builder) If(cond ExprID, then []StmtID, els []StmtID) StmtID {
	return b.stmt(Stmt{Kind: StmtIf, Expr: cond, Then: then, Else: els})
}

func (b *Builder) While(cond ExprID, body ...StmtID) StmtID {
	return b.stmt(Stmt{Kind: StmtWhile, Expr: cond, Then: body})
}

func (b *Builder) Break() StmtID    { return b.stmt(Stmt{Kind: StmtBreak}) }
func (b *Builder) Continue() StmtID { return b.stmt(Stmt{Kind: StmtContinue}) }

// Return builds a return statement; value may be NoExprID.
func (b *Builder) Return(value ExprID) StmtID {
	return b.stmt(Stmt{Kind: StmtReturn, Expr: value})
}

// Expressions

func (b *Builder) expr(e Expr) ExprID {
	return ExprID(b.P.Exprs.Allocate(e))
}

func (b *Builder) Int(t TypeID, v int64) ExprID     { return b.expr(Expr{Kind: ExprInt, Type: t, Int: v}) }
func (b *Builder) Float(t TypeID, v float64) ExprID { return b.expr(Expr{Kind: ExprFloat, Type: t, Float: v}) }
func (b *Builder) Bool(t TypeID, v bool) ExprID     { return b.expr(Expr{Kind: ExprBool, Type: t, Bool: v}) }
func (b *Builder) Str(t TypeID, s string) ExprID    { return b.expr(Expr{Kind: ExprString, Type: t, Str: s}) }
func (b *Builder) Null(t TypeID) ExprID             { return b.expr(Expr{Kind: ExprNull, Type: t}) }
func (b *Builder) Self(t TypeID) ExprID             { return b.expr(Expr{Kind: ExprSelf, Type: t}) }

// Ref reads local id of fn (NoDeclID for top-level locals).
func (b *Builder) Ref(fn DeclID, id LocalID) ExprID {
	l := b.P.Locals(fn)[id]
	return b.expr(Expr{Kind: ExprLocal, Type: l.Type, Local: id})
}

func (b *Builder) GlobalRef(g DeclID) ExprID {
	return b.expr(Expr{Kind: ExprGlobal, Type: b.P.Decl(g).Global.Type, Decl: g})
}

func (b *Builder) FuncRef(t TypeID, fn DeclID, typeArgs ...TypeID) ExprID {
	return b.expr(Expr{Kind: ExprFuncRef, Type: t, Decl: fn, TypeArgs: typeArgs})
}

func (b *Builder) Call(t TypeID, fn DeclID, args ...ExprID) ExprID {
	return b.expr(Expr{Kind: ExprCall, Type: t, Decl: fn, Args: args})
}

func (b *Builder) CallGeneric(t TypeID, fn DeclID, typeArgs []TypeID, args ...ExprID) ExprID {
	return b.expr(Expr{Kind: ExprCall, Type: t, Decl: fn, TypeArgs: typeArgs, Args: args})
}

func (b *Builder) CallValue(t TypeID, fn ExprID, args ...ExprID) ExprID {
	return b.expr(Expr{Kind: ExprCallValue, Type: t, X: fn, Args: args})
}

func (b *Builder) MethodCall(t TypeID, recv ExprID, name string, args ...ExprID) ExprID {
	return b.expr(Expr{Kind: ExprMethodCall, Type: t, X: recv, Name: name, Args: args})
}

func (b *Builder) Member(t TypeID, x ExprID, name string) ExprID {
	return b.expr(Expr{Kind: ExprMember, Type: t, X: x, Name: name})
}

func (b *Builder) Binary(t TypeID, op Op, x, y ExprID) ExprID {
	return b.expr(Expr{Kind: ExprBinary, Type: t, Op: op, X: x, Y: y})
}

// OperatorCall applies the operator op declared by the type of x.
func (b *Builder) OperatorCall(t TypeID, op Op, x, y ExprID) ExprID {
	return b.expr(Expr{Kind: ExprOperator, Type: t, Op: op, X: x, Y: y})
}

func (b *Builder) Unary(t TypeID, op Op, x ExprID) ExprID {
	return b.expr(Expr{Kind: ExprUnary, Type: t, Op: op, X: x})
}

func (b *Builder) Convert(t TypeID, x ExprID) ExprID {
	return b.expr(Expr{Kind: ExprConvert, Type: t, X: x})
}

func (b *Builder) Construct(t TypeID, args ...ExprID) ExprID {
	return b.expr(Expr{Kind: ExprConstruct, Type: t, Args: args})
}

// Alloc allocates the pointee of pointer type t; init may be NoExprID.
func (b *Builder) Alloc(t TypeID, init ExprID) ExprID {
	return b.expr(Expr{Kind: ExprAlloc, Type: t, X: init})
}

func (b *Builder) Deref(t TypeID, x ExprID) ExprID {
	return b.expr(Expr{Kind: ExprDeref, Type: t, X: x})
}

// At sets the span of the most recent expression.
func (b *Builder) At(e ExprID, span source.Span) ExprID {
	b.P.Expr(e).Span = span
	return e
}
