package testkit

import (
	"errors"
	"fmt"

	"keel/internal/ir"
)

// CheckUnitInvariants runs the invariants every pruned unit must satisfy:
// 1) the block trees validate
// 2) every variable is assigned by at most one instruction
// 3) parameters are never reassigned
// 4) edge copies only write phi targets
func CheckUnitInvariants(u *ir.Unit) error {
	if u == nil {
		return fmt.Errorf("nil unit")
	}
	errs := []error{ir.Validate(u)}
	for _, f := range u.Funcs {
		errs = append(errs, checkSSA(f))
	}
	return errors.Join(errs...)
}

func checkSSA(f *ir.Function) error {
	var errs []error
	defs := make(map[ir.Var]int)
	phis := make(map[ir.Var]bool)
	f.Walk(func(b *ir.Block) {
		for _, in := range b.Instrs {
			for _, d := range in.Dst {
				defs[d]++
				if int(d) < len(f.Params) {
					errs = append(errs, fmt.Errorf("%s: parameter v%d reassigned", f.Name, d))
				}
				if in.Op == ir.OpPhi {
					phis[d] = true
				}
			}
		}
	})
	for v, n := range defs {
		if n > 1 {
			errs = append(errs, fmt.Errorf("%s: v%d assigned %d times", f.Name, v, n))
		}
	}
	copies := func(cs []ir.Copy) {
		for _, c := range cs {
			if !phis[c.Dst] {
				errs = append(errs, fmt.Errorf("%s: edge copy writes v%d, which is not a phi", f.Name, c.Dst))
			}
		}
	}
	f.Walk(func(b *ir.Block) {
		copies(b.ExitCopies)
		copies(b.AroundCopies)
		copies(b.EntryCopies)
		for _, in := range b.Instrs {
			copies(in.Copies)
		}
	})
	return errors.Join(errs...)
}
