package ast

import "fortio.org/safecast"

type (
	DeclID uint32
	StmtID uint32
	ExprID uint32
	TypeID uint32
	// LocalID indexes FuncData.Locals (or Program.MainLocals); it is 0-based.
	LocalID uint32
)

const (
	NoDeclID DeclID = 0
	NoStmtID StmtID = 0
	NoExprID ExprID = 0
	NoTypeID TypeID = 0
)

func (id DeclID) IsValid() bool { return id != NoDeclID }
func (id StmtID) IsValid() bool { return id != NoStmtID }
func (id ExprID) IsValid() bool { return id != NoExprID }
func (id TypeID) IsValid() bool { return id != NoTypeID }

// Arena stores nodes of one kind; IDs are 1-based so the zero ID means "none".
type Arena[T any] struct {
	Items []T `msgpack:"items"`
}

// NewArena creates an arena with capacity capHint (zero is allowed).
func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{Items: make([]T, 0, capHint)}
}

// Allocate appends value and returns its 1-based index.
func (a *Arena[T]) Allocate(value T) uint32 {
	a.Items = append(a.Items, value)
	n, err := safecast.Conv[uint32](len(a.Items))
	if err != nil {
		panic("ast: arena overflow")
	}
	return n
}

// Get returns the node for index, or nil for 0 and out-of-range indices.
func (a *Arena[T]) Get(index uint32) *T {
	if a == nil || index == 0 || int(index) > len(a.Items) {
		return nil
	}
	return &a.Items[index-1]
}

func (a *Arena[T]) Len() uint32 {
	if a == nil {
		return 0
	}
	n, err := safecast.Conv[uint32](len(a.Items))
	if err != nil {
		panic("ast: arena overflow")
	}
	return n
}
