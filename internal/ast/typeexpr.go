package ast

import "keel/internal/types"

// TypeKind tags the checking-time type expressions the checker attaches to
// every expression, local and field.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypePrim
	// TypeNamed refers to an aggregate declaration with argument types.
	TypeNamed
	// TypeParam is a generic parameter of the enclosing declaration, by index.
	TypeParam
	TypePointer
	// TypeFunc is a first-class function type; Args are parameter types and
	// Elem is the result.
	TypeFunc
)

func (k TypeKind) String() string {
	switch k {
	case TypeVoid:
		return "void"
	case TypePrim:
		return "prim"
	case TypeNamed:
		return "named"
	case TypeParam:
		return "param"
	case TypePointer:
		return "pointer"
	case TypeFunc:
		return "func"
	}
	return "unknown"
}

type TypeExpr struct {
	Kind  TypeKind   `msgpack:"k"`
	Prim  types.Prim `msgpack:"p,omitempty"`
	Decl  DeclID     `msgpack:"d,omitempty"`
	Args  []TypeID   `msgpack:"a,omitempty"`
	Index uint32     `msgpack:"i,omitempty"`
	Elem  TypeID     `msgpack:"e,omitempty"`
}
