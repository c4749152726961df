package types

import (
	"strconv"
	"strings"

	"fortio.org/safecast"

	"keel/internal/diag"
)

// GenericID is the stable identity of a template, e.g. "prim:i32", "ptr",
// "fn" or "decl#12".
type GenericID string

// VariadicArity marks templates accepting any number of arguments.
const VariadicArity = -1

// Template materializes concrete Types for one generic identity. Materialize
// must not call Get on h itself; use KindOf to classify argument or member
// handles that may still be unmaterialized.
type Template interface {
	Identity() GenericID
	Arity() int
	Kind() Kind
	Materialize(s *Specializer, h Handle, args []Handle) *Type
}

type binding struct {
	template Template
	args     []Handle
	key      string
}

// Specializer is the monomorphization cache. Handles are never invalidated
// and a Type is materialized at most once.
type Specializer struct {
	templates map[GenericID]Template
	keys      map[string]Handle
	bindings  []binding
	types     []*Type
	building  []bool
}

func NewSpecializer() *Specializer {
	s := &Specializer{
		templates: make(map[GenericID]Template, 32),
		keys:      make(map[string]Handle, 64),
		bindings:  []binding{{}},
		types:     []*Type{voidType},
		building:  []bool{false},
	}
	for p := Bool; p <= Float64; p++ {
		s.Register(primTemplate{prim: p})
	}
	s.Register(pointerTemplate{})
	s.Register(funcTemplate{})
	return s
}

// Register adds a template. Registering the same identity twice is a bug.
func (s *Specializer) Register(t Template) {
	id := t.Identity()
	if _, dup := s.templates[id]; dup {
		diag.Internalf("template %s registered twice", id)
	}
	s.templates[id] = t
}

func (s *Specializer) Template(id GenericID) (Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

func canonicalKey(id GenericID, args []Handle) string {
	var sb strings.Builder
	sb.WriteString(string(id))
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(a), 10))
	}
	sb.WriteByte(')')
	return sb.String()
}

// Specialize returns the handle of template id applied to args. A new handle
// is bound lazily; nothing is materialized here.
func (s *Specializer) Specialize(id GenericID, args []Handle) Handle {
	t, ok := s.templates[id]
	if !ok {
		diag.Internalf("specialize: unregistered generic %s", id)
	}
	if arity := t.Arity(); arity != VariadicArity && arity != len(args) {
		diag.Internalf("specialize: %s wants %d arguments, got %d", id, arity, len(args))
	}
	key := canonicalKey(id, args)
	if h, ok := s.keys[key]; ok {
		return h
	}
	n, err := safecast.Conv[uint32](len(s.bindings))
	if err != nil {
		diag.Internalf("specialize: handle overflow: %v", err)
	}
	h := Handle(n)
	s.bindings = append(s.bindings, binding{template: t, args: append([]Handle(nil), args...), key: key})
	s.types = append(s.types, nil)
	s.building = append(s.building, false)
	s.keys[key] = h
	return h
}

// Get materializes h on first use and returns the same *Type afterwards.
func (s *Specializer) Get(h Handle) *Type {
	if int(h) >= len(s.types) {
		diag.Internalf("get: handle %d was never specialized", h)
	}
	if t := s.types[h]; t != nil {
		return t
	}
	b := s.bindings[h]
	if b.template == nil {
		diag.Internalf("get: handle %d has no binding", h)
	}
	if s.building[h] {
		diag.Internalf("get: %s materialized recursively", b.key)
	}
	s.building[h] = true
	t := b.template.Materialize(s, h, b.args)
	s.building[h] = false
	if t == nil {
		diag.Internalf("get: template %s produced no type", b.template.Identity())
	}
	t.Handle = h
	if t.Args == nil {
		t.Args = b.args
	}
	s.types[h] = t
	return t
}

// KindOf answers the kind of h without materializing it.
func (s *Specializer) KindOf(h Handle) Kind {
	if h == Void {
		return KindVoid
	}
	if int(h) >= len(s.bindings) || s.bindings[h].template == nil {
		diag.Internalf("kindof: handle %d was never specialized", h)
	}
	return s.bindings[h].template.Kind()
}

// Args returns the arguments h was specialized with.
func (s *Specializer) Args(h Handle) []Handle {
	if h == Void || int(h) >= len(s.bindings) {
		return nil
	}
	return s.bindings[h].args
}

// Materialized reports whether Get has already built h.
func (s *Specializer) Materialized(h Handle) bool {
	return int(h) < len(s.types) && s.types[h] != nil
}

// Len is the number of handles including Void.
func (s *Specializer) Len() int {
	return len(s.bindings)
}

func (s *Specializer) Name(h Handle) string {
	return s.Get(h).Name
}

func (s *Specializer) Prim(p Prim) Handle {
	if p == PrimNone {
		return Void
	}
	return s.Specialize(primID(p), nil)
}

func (s *Specializer) Pointer(elem Handle) Handle {
	return s.Specialize(pointerID, []Handle{elem})
}

// Func specializes a function type; the result is the last argument.
func (s *Specializer) Func(params []Handle, result Handle) Handle {
	args := make([]Handle, 0, len(params)+1)
	args = append(args, params...)
	args = append(args, result)
	return s.Specialize(funcID, args)
}
