// Package layout computes packed memory layouts of aggregate types by
// iterating to a fixpoint over their value dependencies.
package layout

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"keel/internal/diag"
	"keel/internal/types"
)

// Resolver tracks aggregate types awaiting layout. Registration order is
// kept so results and diagnostics are deterministic.
type Resolver struct {
	spec    *types.Specializer
	order   []types.Handle
	pending map[types.Handle]map[types.Handle]struct{}
}

func New(spec *types.Specializer) *Resolver {
	return &Resolver{
		spec:    spec,
		pending: make(map[types.Handle]map[types.Handle]struct{}),
	}
}

// Add registers h and, transitively, every type it contains by value.
// Non-aggregate handles are ignored: their layout is fixed.
func (r *Resolver) Add(h types.Handle) {
	if !r.spec.KindOf(h).IsAggregate() {
		return
	}
	if _, ok := r.pending[h]; ok {
		return
	}
	t := r.spec.Get(h)
	if t.Resolved {
		return
	}
	deps := make(map[types.Handle]struct{}, len(t.Deps))
	for _, d := range t.Deps {
		deps[d] = struct{}{}
	}
	r.pending[h] = deps
	r.order = append(r.order, h)
	for _, d := range t.Deps {
		r.Add(d)
	}
}

// Types lists every registered aggregate in registration order.
func (r *Resolver) Types() []types.Handle {
	return r.order
}

// Resolve runs the fixpoint and reports every type left with unresolved
// dependencies as LayoutCircular. It returns the unresolved handles.
func (r *Resolver) Resolve(rep diag.Reporter) []types.Handle {
	for progress := true; progress; {
		progress = false
		for _, h := range r.order {
			t := r.spec.Get(h)
			if t.Resolved || len(r.pending[h]) != 0 {
				continue
			}
			Compute(r.spec, t)
			for _, other := range r.order {
				delete(r.pending[other], h)
			}
			progress = true
		}
	}
	var unresolved []types.Handle
	for _, h := range r.order {
		t := r.spec.Get(h)
		if t.Resolved {
			continue
		}
		unresolved = append(unresolved, h)
		chain, loop := r.chain(t)
		msg := fmt.Sprintf("type %s contains itself by value: %s", t.Name, chain)
		if loop.Handle != t.Handle {
			msg = fmt.Sprintf("type %s depends on value cycle through %s: %s", t.Name, loop.Name, chain)
		}
		diag.ReportError(rep, diag.LayoutCircular, t.Span, msg).
			WithNote(t.Span, "store one of the members behind a pointer or class reference").
			Emit()
	}
	return unresolved
}

// chain follows the first unresolved value member from t until a type
// repeats, rendering e.g. "A.b -> B.a -> A". The repeated type is returned
// with the rendering.
func (r *Resolver) chain(t *types.Type) (string, *types.Type) {
	seen := make(map[types.Handle]bool)
	parts := make([]string, 0, 4)
	cur := t
	for !seen[cur.Handle] {
		seen[cur.Handle] = true
		var next *types.Type
		for _, m := range cur.Members {
			if _, waiting := r.pending[cur.Handle][m.Type]; waiting {
				parts = append(parts, cur.Name+"."+m.Name)
				next = r.spec.Get(m.Type)
				break
			}
		}
		if next == nil {
			return strings.Join(parts, " -> "), cur
		}
		cur = next
	}
	parts = append(parts, cur.Name)
	return strings.Join(parts, " -> "), cur
}

// Compute assigns packed offsets to t: each member starts where the previous
// one ends. Value dependencies must already be resolved.
func Compute(spec *types.Specializer, t *types.Type) {
	offset, slot := 0, 0
	layout := make([]types.Slot, 0, len(t.Members))
	for i := range t.Members {
		m := &t.Members[i]
		mt := spec.Get(m.Type)
		if mt.Kind == types.KindStruct && !mt.Resolved {
			diag.Internalf("layout: %s.%s depends on unresolved %s", t.Name, m.Name, mt.Name)
		}
		m.Offset = offset
		m.SlotIndex = slot
		for _, e := range mt.Entries() {
			layout = append(layout, types.Slot{Offset: offset + e.Offset, Prim: e.Prim})
		}
		slot += mt.SlotCount()
		offset += mt.ValueSize()
	}
	if _, err := safecast.Conv[uint32](offset); err != nil {
		diag.Internalf("layout: %s is too large: %v", t.Name, err)
	}
	t.Size = offset
	t.Layout = layout
	t.Resolved = true
}
