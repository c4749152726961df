package ir

import "keel/internal/types"

// Import is a foreign function provided by the host under module "env".
type Import struct {
	Name    string
	Symbol  string
	Sig     Signature
	InTable bool
}

// Segment is a deduplicated string literal.
type Segment struct {
	Data []byte
}

// GlobalVar is a source-level global stored in linear memory.
type GlobalVar struct {
	Name    string
	Size    int
	Mutable bool
}

// Scratch shuttles result slot Position of a multi-slot return value.
type Scratch struct {
	Position int
	Prim     types.Prim
}

// Well-known synthetic names.
const (
	AllocFunc  = "__alloc"
	EntryFunc  = "__start"
	HeapBase   = "__heap_base"
	HeapPtr    = "__heap_ptr"
	ImportEnv  = "env"
	EntryAlias = "_start"
)

// Unit is everything lowering produced for one program.
type Unit struct {
	Imports  []*Import
	Funcs    []*Function
	Segments []Segment
	Globals  []GlobalVar
	Scratch  []Scratch
	// Table lists function names in table order.
	Table []string
	// Entry is the program entry function, exported as EntryExport.
	Entry       string
	EntryExport string

	segIndex     map[string]int
	scratchIndex map[Scratch]int
	tableIndex   map[string]int
}

func NewUnit() *Unit {
	return &Unit{
		segIndex:     make(map[string]int),
		scratchIndex: make(map[Scratch]int),
		tableIndex:   make(map[string]int),
	}
}

// Segment returns the index of a segment holding exactly data.
func (u *Unit) Segment(data []byte) int {
	key := string(data)
	if i, ok := u.segIndex[key]; ok {
		return i
	}
	i := len(u.Segments)
	u.Segments = append(u.Segments, Segment{Data: append([]byte(nil), data...)})
	u.segIndex[key] = i
	return i
}

// ScratchSlot returns the index of the scratch slot for (position, prim).
func (u *Unit) ScratchSlot(position int, p types.Prim) int {
	key := Scratch{Position: position, Prim: p}
	if i, ok := u.scratchIndex[key]; ok {
		return i
	}
	i := len(u.Scratch)
	u.Scratch = append(u.Scratch, key)
	u.scratchIndex[key] = i
	return i
}

// TableSlot places name in the indirect-call table and returns its index.
func (u *Unit) TableSlot(name string) int {
	if i, ok := u.tableIndex[name]; ok {
		return i
	}
	i := len(u.Table)
	u.Table = append(u.Table, name)
	u.tableIndex[name] = i
	return i
}

func (u *Unit) InTable(name string) bool {
	_, ok := u.tableIndex[name]
	return ok
}

func (u *Unit) Func(name string) *Function {
	for _, f := range u.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (u *Unit) Import(name string) *Import {
	for _, im := range u.Imports {
		if im.Name == name {
			return im
		}
	}
	return nil
}

// AddGlobal appends a source global and returns its index.
func (u *Unit) AddGlobal(g GlobalVar) int {
	u.Globals = append(u.Globals, g)
	return len(u.Globals) - 1
}
