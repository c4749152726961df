package ast

import "keel/internal/source"

type StmtKind uint8

const (
	StmtExpr StmtKind = iota
	// StmtLet binds Local to the value of Expr.
	StmtLet
	// StmtAssign stores Expr into the lvalue Target.
	StmtAssign
	StmtIf
	StmtWhile
	StmtBreak
	StmtContinue
	StmtReturn
)

func (k StmtKind) String() string {
	switch k {
	case StmtExpr:
		return "expr"
	case StmtLet:
		return "let"
	case StmtAssign:
		return "assign"
	case StmtIf:
		return "if"
	case StmtWhile:
		return "while"
	case StmtBreak:
		return "break"
	case StmtContinue:
		return "continue"
	case StmtReturn:
		return "return"
	}
	return "unknown"
}

type Stmt struct {
	Kind   StmtKind    `msgpack:"k"`
	Span   source.Span `msgpack:"s"`
	Expr   ExprID      `msgpack:"e,omitempty"`
	Target ExprID      `msgpack:"t,omitempty"`
	Local  LocalID     `msgpack:"l,omitempty"`
	Then   []StmtID    `msgpack:"th,omitempty"`
	Else   []StmtID    `msgpack:"el,omitempty"`
}
