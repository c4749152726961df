package wasm

import (
	"fortio.org/safecast"

	"keel/internal/diag"
	"keel/internal/ir"
)

const (
	// PageSize is the size of one linear memory page.
	PageSize = 65536
	// dataBase keeps address zero unused so null pointers never alias data.
	dataBase = 16
	// zoneAlign aligns the start of every memory zone.
	zoneAlign = 16
	// scratchSlotSize fits the widest primitive.
	scratchSlotSize = 8
)

// Memory assigns a fixed address to every static entry of a unit.
type Memory struct {
	Segments []uint32
	Globals  []uint32
	Scratch  []uint32
	// HeapBase is the first address the bump allocator hands out.
	HeapBase uint32
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}

func addr(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		diag.Internalf("wasm: address %d does not fit in 32 bits", n)
	}
	return v
}

// PlanMemory lays out data segments, then globals, then scratch slots, each
// zone starting on a 16-byte boundary, followed by the heap.
func PlanMemory(u *ir.Unit) Memory {
	var m Memory
	at := dataBase
	for _, s := range u.Segments {
		m.Segments = append(m.Segments, addr(at))
		at += len(s.Data)
	}
	at = alignUp(at, zoneAlign)
	for _, g := range u.Globals {
		m.Globals = append(m.Globals, addr(at))
		at += g.Size
	}
	at = alignUp(at, zoneAlign)
	for range u.Scratch {
		m.Scratch = append(m.Scratch, addr(at))
		at += scratchSlotSize
	}
	m.HeapBase = addr(alignUp(at, zoneAlign))
	return m
}

// Pages is the number of pages needed to hold everything below the heap.
func (m Memory) Pages() uint32 {
	return addr(alignUp(int(m.HeapBase), PageSize) / PageSize)
}

// Address resolves an OpAddr instruction.
func (m Memory) Address(zone ir.Zone, index int, imm int64) uint32 {
	var table []uint32
	switch zone {
	case ir.ZoneData:
		table = m.Segments
	case ir.ZoneGlobal:
		table = m.Globals
	case ir.ZoneScratch:
		table = m.Scratch
	}
	if index < 0 || index >= len(table) {
		diag.Internalf("wasm: %s entry %d out of range", zone, index)
	}
	off, err := safecast.Conv[uint32](imm)
	if err != nil {
		diag.Internalf("wasm: negative offset %d into %s entry %d", imm, zone, index)
	}
	return table[index] + off
}
