// Package wasm emits WebAssembly binary modules from pruned SSA units.
package wasm

import (
	"context"
	"fmt"
	"strings"

	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/source"
	"keel/internal/trace"
	"keel/internal/types"
)

// Options configure the emitted module.
type Options struct {
	// MinPages and MaxPages bound the linear memory; MinPages must hold
	// all static data.
	MinPages uint32
	MaxPages uint32
}

// DefaultOptions returns a single fixed page of memory.
func DefaultOptions() Options {
	return Options{MinPages: 1, MaxPages: 1}
}

type funcType struct {
	params  []types.ValType
	results []types.ValType
}

type module struct {
	unit *ir.Unit
	mem  Memory
	opts Options

	types     []funcType
	typeCache map[string]uint32
	funcIndex map[string]uint32
	funcTypes []uint32
}

// Emit encodes u. Problems with the unit as a whole, such as static data
// not fitting into memory, are reported to rep and yield nil.
func Emit(ctx context.Context, u *ir.Unit, rep diag.Reporter, opts Options) []byte {
	if opts.MinPages == 0 {
		opts.MinPages = 1
	}
	if opts.MaxPages < opts.MinPages {
		opts.MaxPages = opts.MinPages
	}
	m := &module{
		unit:      u,
		mem:       PlanMemory(u),
		opts:      opts,
		typeCache: make(map[string]uint32),
		funcIndex: make(map[string]uint32),
	}
	if need := m.mem.Pages(); need > opts.MinPages {
		diag.ReportError(rep, diag.EmitMemoryTooSmall, source.Span{},
			fmt.Sprintf("static data needs %d pages but memory starts with %d", need, opts.MinPages)).
			WithNote(source.Span{}, "raise [memory] min_pages in keel.toml").
			Emit()
		return nil
	}

	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx)

	for _, im := range u.Imports {
		m.funcIndex[im.Name] = count(len(m.funcIndex))
		m.funcTypes = append(m.funcTypes, m.typeIndexOf(im.Sig))
	}
	for _, f := range u.Funcs {
		m.funcIndex[f.Name] = count(len(m.funcIndex))
		m.funcTypes = append(m.funcTypes, m.typeIndexOf(f.Signature()))
	}
	codes := make([][]byte, 0, len(u.Funcs))
	for _, f := range u.Funcs {
		trace.Point(tracer, trace.ScopeTask, "emit", f.Name, parent)
		codes = append(codes, newFnGen(m, f).body())
	}

	out := append([]byte(nil), magic...)
	out = append(out, version...)
	out = appendSection(out, sectionType, m.typeSection())
	if len(u.Imports) > 0 {
		out = appendSection(out, sectionImport, m.importSection())
	}
	out = appendSection(out, sectionFunction, m.functionSection())
	out = appendSection(out, sectionTable, m.tableSection())
	out = appendSection(out, sectionMemory, m.memorySection())
	out = appendSection(out, sectionGlobal, m.globalSection())
	out = appendSection(out, sectionExport, m.exportSection())
	if len(u.Table) > 0 {
		out = appendSection(out, sectionElement, m.elementSection())
	}
	out = appendSection(out, sectionCode, codeSection(codes))
	if len(u.Segments) > 0 {
		out = appendSection(out, sectionData, m.dataSection())
	}
	return out
}

func valTypes(ps []types.Prim) []types.ValType {
	out := make([]types.ValType, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ValType())
	}
	return out
}

func sigKey(ft funcType) string {
	var sb strings.Builder
	for _, v := range ft.params {
		sb.WriteByte(byte(v))
	}
	sb.WriteByte('|')
	for _, v := range ft.results {
		sb.WriteByte(byte(v))
	}
	return sb.String()
}

// typeIndexOf returns the index of the structurally equal type, adding it
// on first use.
func (m *module) typeIndexOf(sig ir.Signature) uint32 {
	ft := funcType{params: valTypes(sig.Params)}
	if sig.Result != types.PrimNone {
		ft.results = []types.ValType{sig.Result.ValType()}
	}
	key := sigKey(ft)
	if idx, ok := m.typeCache[key]; ok {
		return idx
	}
	idx := count(len(m.types))
	m.types = append(m.types, ft)
	m.typeCache[key] = idx
	return idx
}

func (m *module) funcIndexOf(name string) uint32 {
	idx, ok := m.funcIndex[name]
	if !ok {
		diag.Internalf("wasm: call to unknown function %s", name)
	}
	return idx
}

func appendValTypes(b []byte, vts []types.ValType) []byte {
	b = appendLen(b, len(vts))
	for _, v := range vts {
		b = append(b, byte(v))
	}
	return b
}

func (m *module) typeSection() []byte {
	var body []byte
	for _, ft := range m.types {
		body = append(body, typeFunc)
		body = appendValTypes(body, ft.params)
		body = appendValTypes(body, ft.results)
	}
	return appendVector(nil, len(m.types), body)
}

func (m *module) importSection() []byte {
	var body []byte
	for i, im := range m.unit.Imports {
		body = appendName(body, ir.ImportEnv)
		body = appendName(body, im.Symbol)
		body = append(body, kindFunc)
		body = appendU32(body, m.funcTypes[i])
	}
	return appendVector(nil, len(m.unit.Imports), body)
}

func (m *module) functionSection() []byte {
	var body []byte
	local := m.funcTypes[len(m.unit.Imports):]
	for _, t := range local {
		body = appendU32(body, t)
	}
	return appendVector(nil, len(local), body)
}

func (m *module) tableSection() []byte {
	n := count(len(m.unit.Table))
	body := []byte{typeFuncref, limitsMinMax}
	body = appendU32(body, n)
	body = appendU32(body, n)
	return appendVector(nil, 1, body)
}

func (m *module) memorySection() []byte {
	body := []byte{limitsMinMax}
	body = appendU32(body, m.opts.MinPages)
	body = appendU32(body, m.opts.MaxPages)
	return appendVector(nil, 1, body)
}

func (m *module) globalSection() []byte {
	var body []byte
	for _, mut := range []byte{globalConst, globalVar} {
		body = append(body, byte(types.I32), mut, opI32Const)
		body = appendS64(body, i32Imm(m.mem.HeapBase))
		body = append(body, opEnd)
	}
	return appendVector(nil, 2, body)
}

func (m *module) exportSection() []byte {
	var body []byte
	n := 1
	body = appendName(body, "memory")
	body = append(body, kindMemory)
	body = appendU32(body, 0)
	for _, f := range m.unit.Funcs {
		if f.Export == "" {
			continue
		}
		body = appendName(body, f.Export)
		body = append(body, kindFunc)
		body = appendU32(body, m.funcIndexOf(f.Name))
		n++
	}
	return appendVector(nil, n, body)
}

func (m *module) elementSection() []byte {
	body := []byte{0x00, opI32Const, 0x00, opEnd}
	body = appendLen(body, len(m.unit.Table))
	for _, name := range m.unit.Table {
		body = appendU32(body, m.funcIndexOf(name))
	}
	return appendVector(nil, 1, body)
}

func codeSection(codes [][]byte) []byte {
	var body []byte
	for _, c := range codes {
		body = appendLen(body, len(c))
		body = append(body, c...)
	}
	return appendVector(nil, len(codes), body)
}

func (m *module) dataSection() []byte {
	var body []byte
	for i, s := range m.unit.Segments {
		body = append(body, 0x00, opI32Const)
		body = appendS64(body, i32Imm(m.mem.Segments[i]))
		body = append(body, opEnd)
		body = appendLen(body, len(s.Data))
		body = append(body, s.Data...)
	}
	return appendVector(nil, len(m.unit.Segments), body)
}
