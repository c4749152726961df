package mono

import (
	"keel/internal/ast"
	"keel/internal/types"
)

type aggregateTemplate struct {
	binder *Binder
	decl   ast.DeclID
}

func (t *aggregateTemplate) Identity() types.GenericID { return DeclIdentity(t.decl) }

func (t *aggregateTemplate) Arity() int {
	return len(t.binder.Prog.Decl(t.decl).Generics)
}

func (t *aggregateTemplate) Kind() types.Kind {
	if t.binder.Prog.Decl(t.decl).Kind == ast.DeclClass {
		return types.KindClass
	}
	return types.KindStruct
}

// Materialize resolves member types under args. Member handles are only
// specialized, so aggregates reaching themselves through pointers terminate.
func (t *aggregateTemplate) Materialize(s *types.Specializer, _ types.Handle, args []types.Handle) *types.Type {
	b := t.binder
	d := b.Prog.Decl(t.decl)
	out := &types.Type{
		Name:      b.Mangle(d.Name, args),
		Kind:      t.Kind(),
		Span:      d.Span,
		Args:      args,
		Decl:      uint32(t.decl),
		Methods:   make(map[string]uint32, len(d.Aggregate.Methods)),
		Operators: make(map[uint8]uint32, len(d.Aggregate.Operators)),
		Init:      uint32(d.Aggregate.Init),
	}
	for _, f := range d.Aggregate.Fields {
		h := b.Resolve(f.Type, args)
		out.Members = append(out.Members, types.Member{Name: f.Name, Type: h})
		if s.KindOf(h) == types.KindStruct {
			out.Deps = append(out.Deps, h)
		}
	}
	for _, m := range d.Aggregate.Methods {
		out.Methods[b.Prog.Decl(m).Name] = uint32(m)
	}
	for _, op := range d.Aggregate.Operators {
		out.Operators[uint8(b.Prog.Decl(op).Func.Op)] = uint32(op)
	}
	return out
}
