package ssa

import (
	"slices"

	"keel/internal/diag"
	"keel/internal/ir"
)

// maxRounds bounds the renaming fixpoint; a function needing more is a
// malformed graph, not a large program.
const maxRounds = 1 << 12

// env maps each original variable to the name reaching a program point.
type env map[ir.Var]ir.Var

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func (e env) equal(o env) bool {
	if len(e) != len(o) {
		return false
	}
	for k, v := range e {
		if w, ok := o[k]; !ok || w != v {
			return false
		}
	}
	return true
}

type defKey struct {
	block ir.BlockID
	instr int
	slot  int
}

type phiKey struct {
	block ir.BlockID
	v     ir.Var
}

type branchKey struct {
	block ir.BlockID
	instr int
}

type converter struct {
	f *ir.Function
	g *Graph

	defs map[defKey]ir.Var
	phis map[phiKey]ir.Var
	// phisAt lists, per block, the original variables that got a phi.
	phisAt map[ir.BlockID][]ir.Var

	out      map[ir.BlockID]env
	branches map[branchKey]env
}

// Convert rewrites f in place so every variable has exactly one definition.
// Phis are placed at the head of join blocks and fed by parallel copies
// stored on the incoming edges. The graph used for the rewrite is returned.
func Convert(f *ir.Function) *Graph {
	g := Build(f)
	if len(f.Body) == 0 {
		return g
	}
	c := &converter{
		f:        f,
		g:        g,
		defs:     make(map[defKey]ir.Var),
		phis:     make(map[phiKey]ir.Var),
		phisAt:   make(map[ir.BlockID][]ir.Var),
		out:      make(map[ir.BlockID]env),
		branches: make(map[branchKey]env),
	}
	c.solve()
	c.rewrite()
	return g
}

func (c *converter) defName(b ir.BlockID, i, k int, orig ir.Var) ir.Var {
	key := defKey{block: b, instr: i, slot: k}
	if v, ok := c.defs[key]; ok {
		return v
	}
	v := c.f.NewVar(c.f.VarPrim(orig))
	c.defs[key] = v
	return v
}

func (c *converter) phiName(b ir.BlockID, orig ir.Var) ir.Var {
	key := phiKey{block: b, v: orig}
	if v, ok := c.phis[key]; ok {
		return v
	}
	v := c.f.NewVar(c.f.VarPrim(orig))
	c.phis[key] = v
	c.phisAt[b] = append(c.phisAt[b], orig)
	return v
}

// edgeEnv returns the names flowing along e, or nil when its source has
// not been visited yet.
func (c *converter) edgeEnv(e Edge) env {
	if e.Site == SiteBranch {
		return c.branches[branchKey{block: e.From, instr: e.Instr}]
	}
	return c.out[e.From]
}

// incoming collects, per original variable, the distinct names arriving at b.
func (c *converter) incoming(b ir.BlockID) map[ir.Var][]ir.Var {
	names := make(map[ir.Var][]ir.Var)
	add := func(v, n ir.Var) {
		if !slices.Contains(names[v], n) {
			names[v] = append(names[v], n)
		}
	}
	if b == c.g.Entry {
		for i := range c.f.Params {
			add(ir.Var(i), ir.Var(i))
		}
	}
	for _, e := range c.g.Preds[b] {
		for v, n := range c.edgeEnv(e) {
			add(v, n)
		}
	}
	return names
}

// entryEnv computes the names live on entry to b, creating phis where
// several names meet. Phis are never withdrawn once created.
func (c *converter) entryEnv(b ir.BlockID) env {
	names := c.incoming(b)
	keys := make([]ir.Var, 0, len(names))
	for v := range names {
		keys = append(keys, v)
	}
	slices.Sort(keys)
	in := make(env, len(names))
	for _, v := range keys {
		_, hasPhi := c.phis[phiKey{block: b, v: v}]
		if len(names[v]) == 1 && !hasPhi {
			in[v] = names[v][0]
			continue
		}
		in[v] = c.phiName(b, v)
	}
	return in
}

// transfer runs the definitions of a basic block over cur and records the
// names leaving through each branch.
func (c *converter) transfer(blk *ir.Block, cur env) env {
	for i := range blk.Instrs {
		in := &blk.Instrs[i]
		for k, d := range in.Dst {
			cur[d] = c.defName(blk.ID, i, k, d)
		}
		if in.IsBranch() {
			c.branches[branchKey{block: blk.ID, instr: i}] = cur.clone()
		}
	}
	return cur
}

func (c *converter) solve() {
	for round := 0; ; round++ {
		if round == maxRounds {
			diag.Internalf("%s: renaming did not converge", c.f.Name)
		}
		changed := false
		for _, id := range c.g.Order {
			blk := c.f.Block(id)
			cur := c.entryEnv(id)
			if blk.Kind == ir.BlockBasic {
				cur = c.transfer(blk, cur)
			}
			if old, ok := c.out[id]; !ok || !old.equal(cur) {
				c.out[id] = cur
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func rename(e env, v ir.Var) ir.Var {
	if n, ok := e[v]; ok {
		return n
	}
	return v
}

func (c *converter) rewrite() {
	phiCount := make(map[ir.BlockID]int)
	for _, id := range c.g.Order {
		blk := c.f.Block(id)
		in := c.entryEnv(id)
		switch blk.Kind {
		case ir.BlockBasic:
			origs := slices.Clone(c.phisAt[id])
			slices.Sort(origs)
			phis := make([]ir.Instr, 0, len(origs))
			for _, v := range origs {
				var args []ir.Var
				for _, e := range c.g.Preds[id] {
					if n, ok := c.edgeEnv(e)[v]; ok && !slices.Contains(args, n) {
						args = append(args, n)
					}
				}
				phis = append(phis, ir.Instr{Op: ir.OpPhi, Dst: []ir.Var{c.phis[phiKey{block: id, v: v}]}, Args: args})
			}
			cur := in.clone()
			for i := range blk.Instrs {
				instr := &blk.Instrs[i]
				instr.Args = slices.Clone(instr.Args)
				instr.Dst = slices.Clone(instr.Dst)
				for k, a := range instr.Args {
					instr.Args[k] = rename(cur, a)
				}
				for k, d := range instr.Dst {
					n := c.defName(id, i, k, d)
					instr.Dst[k] = n
					cur[d] = n
				}
			}
			phiCount[id] = len(phis)
			if len(phis) > 0 {
				blk.Instrs = append(phis, blk.Instrs...)
			}
		case ir.BlockIf, ir.BlockIfElse:
			blk.Cond = rename(in, blk.Cond)
		}
	}
	for _, id := range c.g.Order {
		origs := slices.Clone(c.phisAt[id])
		if len(origs) == 0 {
			continue
		}
		slices.Sort(origs)
		for _, e := range c.g.Preds[id] {
			src := c.edgeEnv(e)
			var copies []ir.Copy
			for _, v := range origs {
				dst := c.phis[phiKey{block: id, v: v}]
				if n, ok := src[v]; ok && n != dst {
					copies = append(copies, ir.Copy{Dst: dst, Src: n})
				}
			}
			if len(copies) > 0 {
				c.place(e, copies, phiCount[e.From])
			}
		}
	}
}

// place stores copies at the site of e. shift accounts for phis inserted
// ahead of the branch instruction.
func (c *converter) place(e Edge, copies []ir.Copy, shift int) {
	from := c.f.Block(e.From)
	switch e.Site {
	case SiteFallthrough:
		from.ExitCopies = append(from.ExitCopies, copies...)
	case SiteBranch:
		in := &from.Instrs[e.Instr+shift]
		in.Copies = append(in.Copies, copies...)
	case SiteAround:
		from.AroundCopies = append(from.AroundCopies, copies...)
	case SiteEnter:
		if from.Kind != ir.BlockLoop {
			diag.Internalf("%s: join at the head of %s block %d", c.f.Name, from.Kind, from.ID)
		}
		from.EntryCopies = append(from.EntryCopies, copies...)
	}
}
