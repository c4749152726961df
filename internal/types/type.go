package types

import (
	"fmt"

	"keel/internal/diag"
	"keel/internal/source"
)

// Handle identifies a specialized type inside a Specializer.
type Handle uint32

// Void is the reserved handle of the empty type.
const Void Handle = 0

type Kind uint8

const (
	KindVoid Kind = iota
	KindPrimitive
	// KindStruct values are laid out inline and copied by value.
	KindStruct
	// KindClass values are pointers to a heap instance.
	KindClass
	KindPointer
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindPrimitive:
		return "primitive"
	case KindStruct:
		return "struct"
	case KindClass:
		return "class"
	case KindPointer:
		return "pointer"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsAggregate reports whether k has members and a computed layout.
func (k Kind) IsAggregate() bool {
	return k == KindStruct || k == KindClass
}

// Slot is one primitive entry of a memory layout.
type Slot struct {
	Offset int
	Prim   Prim
}

type Member struct {
	Name string
	Type Handle
	// Offset is the byte offset inside the value (struct) or instance (class).
	Offset int
	// SlotIndex is the first IR slot of the member inside a struct value.
	SlotIndex int
}

// Type is a fully specialized type. Aggregate layout fields are filled in by
// the layout resolver; everything else is fixed at materialization.
type Type struct {
	Handle Handle
	Name   string
	Kind   Kind
	Span   source.Span

	Prim   Prim     // KindPrimitive
	Elem   Handle   // KindPointer
	Params []Handle // KindFunc
	Result Handle   // KindFunc
	Args   []Handle // specialization arguments

	// Decl is the source declaration of an aggregate as an opaque AST id.
	Decl      uint32
	Members   []Member
	Methods   map[string]uint32
	Operators map[uint8]uint32
	Init      uint32

	// Deps are the struct-typed members this type contains by value.
	Deps     []Handle
	Resolved bool
	// Size is the value size for structs and the instance size for classes.
	Size   int
	Layout []Slot
}

var voidType = &Type{Handle: Void, Name: "void", Kind: KindVoid, Resolved: true}

// Member returns the member called name.
func (t *Type) Member(name string) (*Member, bool) {
	for i := range t.Members {
		if t.Members[i].Name == name {
			return &t.Members[i], true
		}
	}
	return nil, false
}

func (t *Type) Method(name string) (uint32, bool) {
	d, ok := t.Methods[name]
	return d, ok
}

func (t *Type) Operator(op uint8) (uint32, bool) {
	d, ok := t.Operators[op]
	return d, ok
}

// Constructor returns the user initializer, or 0 when fields are assigned
// directly.
func (t *Type) Constructor() uint32 {
	return t.Init
}

// ValueSize is the number of bytes a value of t occupies in memory.
func (t *Type) ValueSize() int {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindPrimitive:
		return t.Prim.Size()
	case KindStruct:
		t.mustResolved()
		return t.Size
	case KindClass, KindPointer, KindFunc:
		return PtrSize
	}
	return 0
}

// Entries is the memory layout of a value of t.
func (t *Type) Entries() []Slot {
	switch t.Kind {
	case KindVoid:
		return nil
	case KindPrimitive:
		return []Slot{{Prim: t.Prim}}
	case KindStruct:
		t.mustResolved()
		return t.Layout
	case KindClass, KindPointer, KindFunc:
		return []Slot{{Prim: PtrPrim}}
	}
	return nil
}

// Slots lists the prim of every IR variable a value of t occupies.
func (t *Type) Slots() []Prim {
	entries := t.Entries()
	out := make([]Prim, len(entries))
	for i, e := range entries {
		out[i] = e.Prim
	}
	return out
}

func (t *Type) SlotCount() int {
	return len(t.Entries())
}

func (t *Type) mustResolved() {
	if !t.Resolved {
		diag.Internalf("layout of %s used before resolution", t.Name)
	}
}

func (t *Type) String() string {
	return t.Name
}
