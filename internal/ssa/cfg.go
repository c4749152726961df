// Package ssa derives control-flow graphs from structured block trees,
// converts functions to single assignment form and prunes dead code.
package ssa

import "keel/internal/ir"

// Site says where the copies feeding a join along an edge are stored.
type Site uint8

const (
	// SiteFallthrough edges leave a basic block at its end (ExitCopies).
	SiteFallthrough Site = iota
	// SiteBranch edges leave through a break-family instruction (Copies).
	SiteBranch
	// SiteAround edges skip the body of an if (AroundCopies).
	SiteAround
	// SiteEnter edges enter the body of a structured block (EntryCopies).
	SiteEnter
)

func (s Site) String() string {
	switch s {
	case SiteFallthrough:
		return "fallthrough"
	case SiteBranch:
		return "branch"
	case SiteAround:
		return "around"
	case SiteEnter:
		return "enter"
	}
	return "site?"
}

// Edge is one possible control transfer. Instr indexes the branch
// instruction for SiteBranch edges.
type Edge struct {
	From  ir.BlockID
	To    ir.BlockID
	Site  Site
	Instr int
}

// Graph is the control-flow view of one function, indexed by block id.
type Graph struct {
	Preds [][]Edge
	Succs [][]Edge
	Entry ir.BlockID
	// Order lists reachable blocks breadth-first from Entry.
	Order []ir.BlockID

	reachable []bool
}

// Build records, for every block, the blocks that may transfer control into
// it. Instructions are not touched.
func Build(f *ir.Function) *Graph {
	n := len(f.Blocks)
	g := &Graph{
		Preds:     make([][]Edge, n),
		Succs:     make([][]Edge, n),
		reachable: make([]bool, n),
	}
	b := &cfgBuilder{f: f, g: g, exit: make(map[ir.BlockID]ir.BlockID), head: make(map[ir.BlockID]ir.BlockID)}
	b.seq(f.Body, ir.NoBlock)
	if len(f.Body) > 0 {
		g.Entry = f.Body[0]
		g.bfs()
	}
	return g
}

// Reachable reports whether control can reach id from the entry.
func (g *Graph) Reachable(id ir.BlockID) bool {
	return int(id) < len(g.reachable) && g.reachable[id]
}

func (g *Graph) addEdge(e Edge) {
	if e.To == ir.NoBlock {
		return
	}
	g.Succs[e.From] = append(g.Succs[e.From], e)
	g.Preds[e.To] = append(g.Preds[e.To], e)
}

func (g *Graph) bfs() {
	queue := []ir.BlockID{g.Entry}
	g.reachable[g.Entry] = true
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		g.Order = append(g.Order, id)
		for _, e := range g.Succs[id] {
			if !g.reachable[e.To] {
				g.reachable[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
}

type cfgBuilder struct {
	f *ir.Function
	g *Graph
	// exit maps loops and breakables to the block after them.
	exit map[ir.BlockID]ir.BlockID
	// head maps loops to the first block of their body.
	head map[ir.BlockID]ir.BlockID
}

// seq wires an array of blocks; fall is where control goes after the last.
func (b *cfgBuilder) seq(ids []ir.BlockID, fall ir.BlockID) {
	for i, id := range ids {
		next := fall
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		b.block(b.f.Block(id), next)
	}
}

func first(ids []ir.BlockID, fall ir.BlockID) ir.BlockID {
	if len(ids) == 0 {
		return fall
	}
	return ids[0]
}

func (b *cfgBuilder) block(blk *ir.Block, next ir.BlockID) {
	g := b.g
	switch blk.Kind {
	case ir.BlockBasic:
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			switch in.Op {
			case ir.OpBreak, ir.OpBreakIf:
				g.addEdge(Edge{From: blk.ID, To: b.exit[in.Target], Site: SiteBranch, Instr: i})
			case ir.OpContinue:
				g.addEdge(Edge{From: blk.ID, To: b.head[in.Target], Site: SiteBranch, Instr: i})
			}
			if in.Terminates() {
				return
			}
		}
		g.addEdge(Edge{From: blk.ID, To: next, Site: SiteFallthrough})
	case ir.BlockIf:
		if len(blk.Body) > 0 {
			g.addEdge(Edge{From: blk.ID, To: blk.Body[0], Site: SiteEnter})
		}
		g.addEdge(Edge{From: blk.ID, To: next, Site: SiteAround})
		b.seq(blk.Body, next)
	case ir.BlockIfElse:
		g.addEdge(Edge{From: blk.ID, To: first(blk.Body, next), Site: SiteEnter})
		g.addEdge(Edge{From: blk.ID, To: first(blk.Else, next), Site: SiteEnter})
		b.seq(blk.Body, next)
		b.seq(blk.Else, next)
	case ir.BlockLoop:
		head := first(blk.Body, blk.ID)
		b.exit[blk.ID] = next
		b.head[blk.ID] = head
		g.addEdge(Edge{From: blk.ID, To: head, Site: SiteEnter})
		b.seq(blk.Body, head)
	case ir.BlockBreakable:
		b.exit[blk.ID] = next
		g.addEdge(Edge{From: blk.ID, To: first(blk.Body, next), Site: SiteEnter})
		b.seq(blk.Body, next)
	}
}
