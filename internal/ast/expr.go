package ast

import "keel/internal/source"

type ExprKind uint8

const (
	ExprInt ExprKind = iota
	ExprFloat
	ExprBool
	ExprString
	// ExprNull is the zero pointer or class reference.
	ExprNull
	ExprLocal
	ExprGlobal
	ExprSelf
	// ExprFuncRef names a function as a first-class value.
	ExprFuncRef
	// ExprCall invokes Decl directly with TypeArgs and Args.
	ExprCall
	// ExprCallValue invokes the function value X.
	ExprCallValue
	// ExprMethodCall invokes method Name on receiver X.
	ExprMethodCall
	ExprMember
	// ExprBinary is a builtin operator on primitives.
	ExprBinary
	// ExprOperator dispatches Op to the operator declared by the type of X.
	ExprOperator
	ExprUnary
	// ExprConvert converts X to Type; the checker inserts one wherever an
	// implicit conversion happens.
	ExprConvert
	// ExprConstruct builds a value of the aggregate Type from Args.
	ExprConstruct
	// ExprAlloc allocates the pointee of the pointer Type, optionally
	// initialised from X.
	ExprAlloc
	ExprDeref
)

var exprKindNames = [...]string{
	ExprInt:        "int",
	ExprFloat:      "float",
	ExprBool:       "bool",
	ExprString:     "string",
	ExprNull:       "null",
	ExprLocal:      "local",
	ExprGlobal:     "global",
	ExprSelf:       "self",
	ExprFuncRef:    "funcref",
	ExprCall:       "call",
	ExprCallValue:  "callvalue",
	ExprMethodCall: "methodcall",
	ExprMember:     "member",
	ExprBinary:     "binary",
	ExprOperator:   "operator",
	ExprUnary:      "unary",
	ExprConvert:    "convert",
	ExprConstruct:  "construct",
	ExprAlloc:      "alloc",
	ExprDeref:      "deref",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "unknown"
}

// Expr is a checked expression. Type is always set by the checker.
type Expr struct {
	Kind     ExprKind    `msgpack:"k"`
	Span     source.Span `msgpack:"s"`
	Type     TypeID      `msgpack:"t"`
	Int      int64       `msgpack:"i,omitempty"`
	Float    float64     `msgpack:"f,omitempty"`
	Bool     bool        `msgpack:"b,omitempty"`
	Str      string      `msgpack:"str,omitempty"`
	Local    LocalID     `msgpack:"l,omitempty"`
	Decl     DeclID      `msgpack:"d,omitempty"`
	TypeArgs []TypeID    `msgpack:"ta,omitempty"`
	X        ExprID      `msgpack:"x,omitempty"`
	Y        ExprID      `msgpack:"y,omitempty"`
	Args     []ExprID    `msgpack:"a,omitempty"`
	Name     string      `msgpack:"n,omitempty"`
	Op       Op          `msgpack:"op,omitempty"`
}
