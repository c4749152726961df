package ssa

import "keel/internal/ir"

// Stats counts what Prune removed.
type Stats struct {
	Instrs int
	Copies int
	Blocks int
}

// Prune drops unreachable blocks, pure instructions and copies whose results
// are never used, and basic blocks left with nothing to do. It repeats until
// nothing changes.
func Prune(f *ir.Function, g *Graph) Stats {
	var st Stats
	if g != nil {
		f.Body = keepReachable(f, g, f.Body, &st)
	}
	for {
		live := liveVars(f)
		before := st
		f.Walk(func(b *ir.Block) {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if in.Pure() && !anyLive(live, in.Dst) {
					st.Instrs++
					continue
				}
				in.Copies = liveCopies(live, in.Copies, &st)
				kept = append(kept, in)
			}
			b.Instrs = kept
			b.ExitCopies = liveCopies(live, b.ExitCopies, &st)
			b.AroundCopies = liveCopies(live, b.AroundCopies, &st)
			b.EntryCopies = liveCopies(live, b.EntryCopies, &st)
		})
		f.Body = dropEmpty(f, f.Body, &st)
		if st == before {
			return st
		}
	}
}

func keepReachable(f *ir.Function, g *Graph, ids []ir.BlockID, st *Stats) []ir.BlockID {
	kept := ids[:0]
	for _, id := range ids {
		if !g.Reachable(id) {
			st.Blocks++
			continue
		}
		b := f.Block(id)
		b.Body = keepReachable(f, g, b.Body, st)
		b.Else = keepReachable(f, g, b.Else, st)
		kept = append(kept, id)
	}
	return kept
}

func dropEmpty(f *ir.Function, ids []ir.BlockID, st *Stats) []ir.BlockID {
	kept := ids[:0]
	for _, id := range ids {
		b := f.Block(id)
		if b.Empty() {
			st.Blocks++
			continue
		}
		b.Body = dropEmpty(f, b.Body, st)
		b.Else = dropEmpty(f, b.Else, st)
		kept = append(kept, id)
	}
	return kept
}

// liveVars marks every variable that can influence an effect: arguments of
// impure instructions, branch conditions, and everything feeding them.
func liveVars(f *ir.Function) []bool {
	live := make([]bool, len(f.Vars))
	mark := func(v ir.Var) bool {
		if live[v] {
			return false
		}
		live[v] = true
		return true
	}
	for changed := true; changed; {
		changed = false
		copies := func(cs []ir.Copy) {
			for _, c := range cs {
				if live[c.Dst] && mark(c.Src) {
					changed = true
				}
			}
		}
		f.Walk(func(b *ir.Block) {
			if b.Kind == ir.BlockIf || b.Kind == ir.BlockIfElse {
				if mark(b.Cond) {
					changed = true
				}
			}
			for _, in := range b.Instrs {
				if !in.Pure() || anyLive(live, in.Dst) {
					for _, a := range in.Args {
						if mark(a) {
							changed = true
						}
					}
				}
				copies(in.Copies)
			}
			copies(b.ExitCopies)
			copies(b.AroundCopies)
			copies(b.EntryCopies)
		})
	}
	return live
}

func anyLive(live []bool, vs []ir.Var) bool {
	for _, v := range vs {
		if live[v] {
			return true
		}
	}
	return false
}

func liveCopies(live []bool, cs []ir.Copy, st *Stats) []ir.Copy {
	if len(cs) == 0 {
		return cs
	}
	kept := cs[:0]
	for _, c := range cs {
		if !live[c.Dst] {
			st.Copies++
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// Run converts f to SSA form and prunes it.
func Run(f *ir.Function) Stats {
	g := Convert(f)
	return Prune(f, g)
}
