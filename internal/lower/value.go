package lower

import (
	"fortio.org/safecast"

	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/types"
)

// Access is how a Value is reached.
type Access uint8

const (
	// Direct values live in IR variables.
	Direct Access = iota
	// PtrRel values live in memory at Base+Offset.
	PtrRel
	// Global values live inside a source global.
	Global
)

// Value is a logical value during lowering: its slots, or where to find
// them.
type Value struct {
	Access Access
	Type   types.Handle
	Slots  []ir.Var
	Base   ir.Var
	Offset uint32
	Global int
}

func offset32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		diag.Internalf("offset %d out of range: %v", n, err)
	}
	return v
}

// addressed rewrites a Global value as pointer-relative to its address.
func (c *fnLowering) addressed(v Value) Value {
	if v.Access != Global {
		return v
	}
	base := c.addr(ir.ZoneGlobal, v.Global, 0)
	return Value{Access: PtrRel, Type: v.Type, Base: base, Offset: v.Offset}
}

// read returns the variables holding v, loading from memory if needed.
func (c *fnLowering) read(v Value) []ir.Var {
	if v.Access == Direct {
		return v.Slots
	}
	v = c.addressed(v)
	entries := c.typ(v.Type).Entries()
	out := make([]ir.Var, len(entries))
	for i, e := range entries {
		out[i] = c.newVar(e.Prim)
		c.emit(ir.Instr{
			Op:      ir.OpLoad,
			Dst:     []ir.Var{out[i]},
			Args:    []ir.Var{v.Base},
			Storage: e.Prim,
			Offset:  v.Offset + offset32(e.Offset),
		})
	}
	return out
}

// write stores src into dst slot by slot.
func (c *fnLowering) write(dst Value, src []ir.Var) {
	if dst.Access == Direct {
		if len(dst.Slots) != len(src) {
			diag.Internalf("%s: writing %d slots into %d", c.f.Name, len(src), len(dst.Slots))
		}
		for i := range src {
			if dst.Slots[i] != src[i] {
				c.emit(ir.Instr{Op: ir.OpCopy, Dst: []ir.Var{dst.Slots[i]}, Args: []ir.Var{src[i]}})
			}
		}
		return
	}
	dst = c.addressed(dst)
	entries := c.typ(dst.Type).Entries()
	if len(entries) != len(src) {
		diag.Internalf("%s: storing %d slots into %d", c.f.Name, len(src), len(entries))
	}
	for i, e := range entries {
		c.emit(ir.Instr{
			Op:      ir.OpStore,
			Args:    []ir.Var{dst.Base, src[i]},
			Storage: e.Prim,
			Offset:  dst.Offset + offset32(e.Offset),
		})
	}
}

// field addresses member m of the class instance at ptr.
func field(ptr ir.Var, m *types.Member) Value {
	return Value{Access: PtrRel, Type: m.Type, Base: ptr, Offset: offset32(m.Offset)}
}

// member selects a member of an aggregate value. Struct members are slot
// re-indexing or offset arithmetic; class members go through the pointer.
func (c *fnLowering) member(v Value, name string) Value {
	t := c.typ(v.Type)
	m, ok := t.Member(name)
	if !ok {
		diag.Internalf("%s has no member %s", t.Name, name)
	}
	switch t.Kind {
	case types.KindClass:
		return field(c.read(v)[0], m)
	case types.KindStruct:
		switch v.Access {
		case Direct:
			n := c.typ(m.Type).SlotCount()
			return Value{Access: Direct, Type: m.Type, Slots: v.Slots[m.SlotIndex : m.SlotIndex+n]}
		case PtrRel, Global:
			v.Type = m.Type
			v.Offset += offset32(m.Offset)
			return v
		}
	case types.KindVoid, types.KindPrimitive, types.KindPointer, types.KindFunc:
	}
	diag.Internalf("member access on %s", t.Name)
	return Value{}
}
