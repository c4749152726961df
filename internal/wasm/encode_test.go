package wasm

import (
	"bytes"
	"testing"

	"keel/internal/ir"
	"keel/internal/types"
)

func TestLEB128(t *testing.T) {
	unsigned := []struct {
		in   uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
		{0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, tc := range unsigned {
		if got := appendU32(nil, tc.in); !bytes.Equal(got, tc.want) {
			t.Fatalf("appendU32(%d) = % x, want % x", tc.in, got, tc.want)
		}
	}
	signed := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7F}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{-123456, []byte{0xC0, 0xBB, 0x78}},
	}
	for _, tc := range signed {
		if got := appendS64(nil, tc.in); !bytes.Equal(got, tc.want) {
			t.Fatalf("appendS64(%d) = % x, want % x", tc.in, got, tc.want)
		}
	}
}

func TestPlanMemoryZones(t *testing.T) {
	u := ir.NewUnit()
	u.Segment([]byte("hello"))
	u.Segment([]byte("world!"))
	u.AddGlobal(ir.GlobalVar{Name: "g", Size: 12})
	u.ScratchSlot(1, 0)
	m := PlanMemory(u)
	if m.Segments[0] != 16 || m.Segments[1] != 21 {
		t.Fatalf("segments at %v, want [16 21]", m.Segments)
	}
	if m.Globals[0] != 32 {
		t.Fatalf("globals zone starts at %d, want 32", m.Globals[0])
	}
	if m.Scratch[0] != 48 {
		t.Fatalf("scratch zone starts at %d, want 48", m.Scratch[0])
	}
	if m.HeapBase != 64 || m.Pages() != 1 {
		t.Fatalf("heap base %d, pages %d", m.HeapBase, m.Pages())
	}
	if got := m.Address(ir.ZoneData, 1, 2); got != 23 {
		t.Fatalf("address = %d, want 23", got)
	}
}

func TestCompactLocals(t *testing.T) {
	groups := compactLocals([]types.ValType{types.I32, types.I32, types.F64, types.I32})
	if len(groups) != 3 || groups[0].count != 2 || groups[2].count != 1 {
		t.Fatalf("groups = %+v", groups)
	}
}
