package ast

// Visitor receives every statement and expression of a tree. The generic
// VisitStmt/VisitExpr hooks run first; returning false skips the node's
// per-kind hook and its children.
type Visitor interface {
	VisitStmt(id StmtID, s *Stmt) bool
	VisitExpr(id ExprID, e *Expr) bool

	Let(id StmtID, s *Stmt)
	Global(id ExprID, e *Expr)
	StringLit(id ExprID, e *Expr)
	FuncRef(id ExprID, e *Expr)
	Call(id ExprID, e *Expr)
	CallValue(id ExprID, e *Expr)
	MethodCall(id ExprID, e *Expr)
	Member(id ExprID, e *Expr)
	Operator(id ExprID, e *Expr)
	Construct(id ExprID, e *Expr)
	Alloc(id ExprID, e *Expr)
}

// BaseVisitor implements Visitor with no-op hooks.
type BaseVisitor struct{}

func (BaseVisitor) VisitStmt(StmtID, *Stmt) bool { return true }
func (BaseVisitor) VisitExpr(ExprID, *Expr) bool { return true }
func (BaseVisitor) Let(StmtID, *Stmt)            {}
func (BaseVisitor) Global(ExprID, *Expr)         {}
func (BaseVisitor) StringLit(ExprID, *Expr)      {}
func (BaseVisitor) FuncRef(ExprID, *Expr)        {}
func (BaseVisitor) Call(ExprID, *Expr)           {}
func (BaseVisitor) CallValue(ExprID, *Expr)      {}
func (BaseVisitor) MethodCall(ExprID, *Expr)     {}
func (BaseVisitor) Member(ExprID, *Expr)         {}
func (BaseVisitor) Operator(ExprID, *Expr)       {}
func (BaseVisitor) Construct(ExprID, *Expr)      {}
func (BaseVisitor) Alloc(ExprID, *Expr)          {}

// WalkStmts visits each statement tree in order.
func WalkStmts(p *Program, ids []StmtID, v Visitor) {
	for _, id := range ids {
		WalkStmt(p, id, v)
	}
}

func WalkStmt(p *Program, id StmtID, v Visitor) {
	s := p.Stmt(id)
	if s == nil || !v.VisitStmt(id, s) {
		return
	}
	switch s.Kind {
	case StmtLet:
		v.Let(id, s)
	case StmtExpr, StmtAssign, StmtIf, StmtWhile, StmtBreak, StmtContinue, StmtReturn:
	}
	WalkExpr(p, s.Target, v)
	WalkExpr(p, s.Expr, v)
	WalkStmts(p, s.Then, v)
	WalkStmts(p, s.Else, v)
}

func WalkExpr(p *Program, id ExprID, v Visitor) {
	e := p.Expr(id)
	if e == nil || !v.VisitExpr(id, e) {
		return
	}
	switch e.Kind {
	case ExprGlobal:
		v.Global(id, e)
	case ExprString:
		v.StringLit(id, e)
	case ExprFuncRef:
		v.FuncRef(id, e)
	case ExprCall:
		v.Call(id, e)
	case ExprCallValue:
		v.CallValue(id, e)
	case ExprMethodCall:
		v.MethodCall(id, e)
	case ExprMember:
		v.Member(id, e)
	case ExprOperator:
		v.Operator(id, e)
	case ExprConstruct:
		v.Construct(id, e)
	case ExprAlloc:
		v.Alloc(id, e)
	case ExprInt, ExprFloat, ExprBool, ExprNull, ExprLocal, ExprSelf,
		ExprBinary, ExprUnary, ExprConvert, ExprDeref:
	}
	WalkExpr(p, e.X, v)
	WalkExpr(p, e.Y, v)
	for _, arg := range e.Args {
		WalkExpr(p, arg, v)
	}
}
