package types

import "strings"

const (
	pointerID GenericID = "ptr"
	funcID    GenericID = "fn"
)

func primID(p Prim) GenericID {
	return GenericID("prim:" + p.String())
}

type primTemplate struct{ prim Prim }

func (t primTemplate) Identity() GenericID { return primID(t.prim) }
func (t primTemplate) Arity() int          { return 0 }
func (t primTemplate) Kind() Kind          { return KindPrimitive }

func (t primTemplate) Materialize(_ *Specializer, _ Handle, _ []Handle) *Type {
	return &Type{Name: t.prim.String(), Kind: KindPrimitive, Prim: t.prim, Resolved: true}
}

type pointerTemplate struct{}

func (pointerTemplate) Identity() GenericID { return pointerID }
func (pointerTemplate) Arity() int          { return 1 }
func (pointerTemplate) Kind() Kind          { return KindPointer }

// Materialize names the pointee lazily so a pointer to an aggregate that
// contains the same pointer never recurses.
func (pointerTemplate) Materialize(s *Specializer, h Handle, args []Handle) *Type {
	return &Type{Name: "*" + s.shortName(args[0]), Kind: KindPointer, Elem: args[0], Resolved: true}
}

type funcTemplate struct{}

func (funcTemplate) Identity() GenericID { return funcID }
func (funcTemplate) Arity() int          { return VariadicArity }
func (funcTemplate) Kind() Kind          { return KindFunc }

func (funcTemplate) Materialize(s *Specializer, _ Handle, args []Handle) *Type {
	if len(args) == 0 {
		return nil
	}
	params := args[:len(args)-1]
	result := args[len(args)-1]
	var sb strings.Builder
	sb.WriteString("fn(")
	for i, p := range params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(s.shortName(p))
	}
	sb.WriteString(")")
	sb.WriteString(s.shortName(result))
	return &Type{
		Name:     sb.String(),
		Kind:     KindFunc,
		Params:   append([]Handle(nil), params...),
		Result:   result,
		Resolved: true,
	}
}

// shortName names h without forcing materialization of types still being
// built higher up the stack.
func (s *Specializer) shortName(h Handle) string {
	if h == Void {
		return "void"
	}
	if s.building[h] {
		return s.bindings[h].key
	}
	return s.Get(h).Name
}
