package ir

import (
	"errors"
	"fmt"
)

// Validate checks structural invariants of every function in u.
func Validate(u *Unit) error {
	if u == nil {
		return nil
	}
	var errs []error
	for _, f := range u.Funcs {
		if err := ValidateFunction(f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunction checks that variables exist, blocks form a tree and every
// branch targets an enclosing construct of the right kind.
func ValidateFunction(f *Function) error {
	v := validator{f: f, seen: make(map[BlockID]bool)}
	v.blocks(f.Body)
	return errors.Join(v.errs...)
}

type validator struct {
	f     *Function
	seen  map[BlockID]bool
	scope []*Block
	errs  []error
}

func (v *validator) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) checkVars(where string, vars ...Var) {
	for _, x := range vars {
		if int(x) >= len(v.f.Vars) {
			v.errorf("%s: unknown variable v%d", where, x)
		}
	}
}

func (v *validator) checkCopies(where string, cs []Copy) {
	for _, c := range cs {
		v.checkVars(where, c.Dst, c.Src)
	}
}

func (v *validator) blocks(ids []BlockID) {
	for _, id := range ids {
		if id == NoBlock || int(id) >= len(v.f.Blocks) {
			v.errorf("reference to missing block %d", id)
			continue
		}
		if v.seen[id] {
			v.errorf("block b%d appears twice in the tree", id)
			continue
		}
		v.seen[id] = true
		v.block(v.f.Blocks[id])
	}
}

func (v *validator) block(b *Block) {
	where := fmt.Sprintf("b%d", b.ID)
	switch b.Kind {
	case BlockBasic:
		if len(b.Body) != 0 || len(b.Else) != 0 {
			v.errorf("%s: basic block with nested blocks", where)
		}
		for i := range b.Instrs {
			v.instr(where, &b.Instrs[i])
		}
		v.checkCopies(where, b.ExitCopies)
	case BlockIf, BlockIfElse:
		v.checkVars(where, b.Cond)
		v.checkCopies(where, b.AroundCopies)
		v.scope = append(v.scope, b)
		v.blocks(b.Body)
		v.blocks(b.Else)
		v.scope = v.scope[:len(v.scope)-1]
	case BlockLoop, BlockBreakable:
		v.checkCopies(where, b.EntryCopies)
		v.scope = append(v.scope, b)
		v.blocks(b.Body)
		v.scope = v.scope[:len(v.scope)-1]
	default:
		v.errorf("%s: unknown block kind %d", where, b.Kind)
	}
}

func (v *validator) instr(where string, in *Instr) {
	v.checkVars(where, in.Dst...)
	v.checkVars(where, in.Args...)
	v.checkCopies(where, in.Copies)
	if !in.IsBranch() {
		return
	}
	for i := len(v.scope) - 1; i >= 0; i-- {
		s := v.scope[i]
		if s.ID != in.Target {
			continue
		}
		if in.Op == OpContinue && s.Kind != BlockLoop {
			v.errorf("%s: continue targets non-loop b%d", where, s.ID)
		}
		if s.Kind != BlockLoop && s.Kind != BlockBreakable {
			v.errorf("%s: %s targets %s block b%d", where, in.Op, s.Kind, s.ID)
		}
		return
	}
	v.errorf("%s: %s targets b%d which does not enclose it", where, in.Op, in.Target)
}
