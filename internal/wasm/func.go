package wasm

import (
	"slices"

	"keel/internal/diag"
	"keel/internal/ir"
	"keel/internal/types"
)

// label is one entry of the structured control stack. Loops push two: the
// outer block (break target) and the loop itself (continue target).
type label struct {
	block ir.BlockID
	head  bool
}

type use struct {
	v     ir.Var
	block ir.BlockID
}

// fnGen emits the body of one function while simulating the operand stack
// as a list of IR variables.
type fnGen struct {
	m *module
	f *ir.Function

	code    []byte
	nparams int
	locals  map[ir.Var]uint32
	extra   []types.ValType

	uses  []int
	force []bool
	// replay holds the defining instruction of reproducible values.
	replay  map[ir.Var]*ir.Instr
	spilled map[ir.Var]bool

	stack  []ir.Var
	labels []label
}

func newFnGen(m *module, f *ir.Function) *fnGen {
	g := &fnGen{
		m:       m,
		f:       f,
		nparams: len(f.Params),
		locals:  make(map[ir.Var]uint32),
		uses:    make([]int, len(f.Vars)),
		force:   make([]bool, len(f.Vars)),
		replay:  make(map[ir.Var]*ir.Instr),
		spilled: make(map[ir.Var]bool),
	}
	g.analyze()
	return g
}

// analyze counts uses and marks the variables that must live in locals:
// phi targets, copy endpoints, branch conditions, and values read outside
// the block defining them.
func (g *fnGen) analyze() {
	defBlock := make([]ir.BlockID, len(g.f.Vars))
	var all []use
	copies := func(cs []ir.Copy) {
		for _, c := range cs {
			g.force[c.Dst] = true
			g.force[c.Src] = true
			g.uses[c.Src]++
		}
	}
	g.f.Walk(func(b *ir.Block) {
		if b.Kind == ir.BlockIf || b.Kind == ir.BlockIfElse {
			g.uses[b.Cond]++
			g.force[b.Cond] = true
		}
		copies(b.ExitCopies)
		copies(b.AroundCopies)
		copies(b.EntryCopies)
		for i := range b.Instrs {
			in := &b.Instrs[i]
			for _, d := range in.Dst {
				defBlock[d] = b.ID
				if in.Op == ir.OpPhi {
					g.force[d] = true
				}
				if in.Reproducible() {
					g.replay[d] = in
				}
			}
			if in.Op != ir.OpPhi {
				for _, a := range in.Args {
					g.uses[a]++
					all = append(all, use{v: a, block: b.ID})
				}
			}
			copies(in.Copies)
		}
	})
	for _, u := range all {
		if defBlock[u.v] != u.block {
			g.force[u.v] = true
		}
	}
}

func (g *fnGen) isParam(v ir.Var) bool {
	return int(v) < g.nparams
}

// inLocal reports whether v is kept in a local from its definition on.
func (g *fnGen) inLocal(v ir.Var) bool {
	if g.isParam(v) {
		return true
	}
	if g.replay[v] != nil {
		return false
	}
	return g.force[v] || g.uses[v] > 1
}

func (g *fnGen) available(v ir.Var) bool {
	return g.replay[v] != nil || g.inLocal(v) || g.spilled[v]
}

func (g *fnGen) localOf(v ir.Var) uint32 {
	if g.isParam(v) {
		return uint32(v)
	}
	if idx, ok := g.locals[v]; ok {
		return idx
	}
	idx := count(g.nparams + len(g.extra))
	g.extra = append(g.extra, g.f.VarPrim(v).ValType())
	g.locals[v] = idx
	return idx
}

func (g *fnGen) op(bs ...byte) {
	g.code = append(g.code, bs...)
}

func (g *fnGen) u32(v uint32) {
	g.code = appendU32(g.code, v)
}

func (g *fnGen) s64(v int64) {
	g.code = appendS64(g.code, v)
}

// i32Imm reinterprets an unsigned 32-bit quantity as an i32 immediate.
func i32Imm(v uint32) int64 {
	return int64(int32(v)) //nolint:gosec // two's complement reinterpretation
}

// load pushes v, replaying or reading it from its local.
func (g *fnGen) load(v ir.Var) {
	switch {
	case g.replay[v] != nil:
		g.value(g.replay[v])
	case g.inLocal(v) || g.spilled[v]:
		g.op(opLocalGet)
		g.u32(g.localOf(v))
	default:
		diag.Internalf("%s: v%d is neither on the stack nor in a local", g.f.Name, v)
	}
	g.stack = append(g.stack, v)
}

// schedule arranges for the top of the stack to equal args and consumes
// them. It reuses the longest already-correct stack suffix and spills
// anything in the way to locals.
func (g *fnGen) schedule(args []ir.Var) {
	n := len(g.stack)
	reuse := -1
	for j := min(len(args), n); j >= 0; j-- {
		if !slices.Equal(g.stack[n-j:], args[:j]) {
			continue
		}
		ok := true
		for _, a := range args[j:] {
			if !g.available(a) {
				ok = false
				break
			}
		}
		if ok {
			reuse = j
			break
		}
	}
	if reuse < 0 {
		g.spill(args)
		reuse = 0
	}
	for _, a := range args[reuse:] {
		g.load(a)
	}
	top := len(g.stack) - len(args)
	if top < 0 || !slices.Equal(g.stack[top:], args) {
		diag.Internalf("%s: stack %v does not end with operands %v", g.f.Name, g.stack, args)
	}
	g.stack = g.stack[:top]
}

// spill moves every stack entry from the lowest wanted one upward into
// locals.
func (g *fnGen) spill(args []ir.Var) {
	low := len(g.stack)
	for i, v := range g.stack {
		if slices.Contains(args, v) {
			low = i
			break
		}
	}
	for i := len(g.stack) - 1; i >= low; i-- {
		v := g.stack[i]
		g.op(opLocalSet)
		g.u32(g.localOf(v))
		g.spilled[v] = true
	}
	g.stack = g.stack[:low]
}

// define records the results of an instruction that just executed.
func (g *fnGen) define(in *ir.Instr) {
	if len(in.Dst) > 1 {
		diag.Internalf("%s: %s defines %d values", g.f.Name, in.Op, len(in.Dst))
	}
	for _, d := range in.Dst {
		switch {
		case g.uses[d] == 0:
			g.op(opDrop)
		case g.inLocal(d):
			g.op(opLocalSet)
			g.u32(g.localOf(d))
		default:
			g.stack = append(g.stack, d)
		}
	}
}

// copies runs a parallel copy group: all sources are read before any
// destination is written.
func (g *fnGen) copies(cs []ir.Copy) {
	if len(cs) == 0 {
		return
	}
	srcs := make([]ir.Var, len(cs))
	for i, c := range cs {
		srcs[i] = c.Src
	}
	g.schedule(srcs)
	for i := len(cs) - 1; i >= 0; i-- {
		g.op(opLocalSet)
		g.u32(g.localOf(cs[i].Dst))
	}
}

func (g *fnGen) pushLabel(l label) {
	g.labels = append(g.labels, l)
}

func (g *fnGen) popLabel() {
	g.labels = g.labels[:len(g.labels)-1]
}

func (g *fnGen) depth(target ir.BlockID, head bool) uint32 {
	for i := len(g.labels) - 1; i >= 0; i-- {
		if g.labels[i].block == target && g.labels[i].head == head {
			return count(len(g.labels) - 1 - i)
		}
	}
	diag.Internalf("%s: branch to block %d outside its scope", g.f.Name, target)
	return 0
}

func endsTerminated(f *ir.Function, ids []ir.BlockID) bool {
	return len(ids) > 0 && f.Block(ids[len(ids)-1]).Terminated()
}

// body returns the encoded function body: local declarations and code.
func (g *fnGen) body() []byte {
	g.blocks(g.f.Body)
	if g.f.Result != types.PrimNone && !endsTerminated(g.f, g.f.Body) {
		g.op(opUnreachable)
	}
	g.op(opEnd)

	groups := compactLocals(g.extra)
	var out []byte
	out = appendLen(out, len(groups))
	for _, grp := range groups {
		out = appendU32(out, grp.count)
		out = append(out, byte(grp.vtype))
	}
	return append(out, g.code...)
}

type localGroup struct {
	count uint32
	vtype types.ValType
}

func compactLocals(vts []types.ValType) []localGroup {
	var groups []localGroup
	for _, vt := range vts {
		if n := len(groups); n > 0 && groups[n-1].vtype == vt {
			groups[n-1].count++
			continue
		}
		groups = append(groups, localGroup{count: 1, vtype: vt})
	}
	return groups
}

func (g *fnGen) blocks(ids []ir.BlockID) {
	for _, id := range ids {
		g.block(g.f.Block(id))
	}
}

func (g *fnGen) block(b *ir.Block) {
	switch b.Kind {
	case ir.BlockBasic:
		for i := range b.Instrs {
			g.instr(&b.Instrs[i])
		}
		if !b.Terminated() {
			g.copies(b.ExitCopies)
		}
		if len(g.stack) != 0 && !b.Terminated() {
			diag.Internalf("%s: block %d leaves %v on the stack", g.f.Name, b.ID, g.stack)
		}
		g.stack = g.stack[:0]
	case ir.BlockIf, ir.BlockIfElse:
		g.schedule([]ir.Var{b.Cond})
		g.op(opIf, blockEmpty)
		g.pushLabel(label{})
		g.blocks(b.Body)
		if b.Kind == ir.BlockIfElse {
			g.op(opElse)
			g.blocks(b.Else)
		} else if len(b.AroundCopies) > 0 {
			g.op(opElse)
			g.copies(b.AroundCopies)
		}
		g.popLabel()
		g.op(opEnd)
	case ir.BlockLoop:
		g.copies(b.EntryCopies)
		g.op(opBlock, blockEmpty)
		g.pushLabel(label{block: b.ID})
		g.op(opLoop, blockEmpty)
		g.pushLabel(label{block: b.ID, head: true})
		g.blocks(b.Body)
		if !endsTerminated(g.f, b.Body) {
			g.op(opBr)
			g.u32(0)
		}
		g.popLabel()
		g.op(opEnd)
		g.popLabel()
		g.op(opEnd)
	case ir.BlockBreakable:
		g.op(opBlock, blockEmpty)
		g.pushLabel(label{block: b.ID})
		g.blocks(b.Body)
		g.popLabel()
		g.op(opEnd)
	}
}
