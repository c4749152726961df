// Package mono binds aggregate declarations to specialization templates and
// resolves checking-time type expressions to specialized handles.
package mono

import (
	"strconv"
	"strings"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/types"
)

// Binder owns one template per aggregate declaration of a program.
type Binder struct {
	Prog *ast.Program
	Spec *types.Specializer

	templates map[ast.DeclID]*aggregateTemplate
}

func NewBinder(prog *ast.Program, spec *types.Specializer) *Binder {
	b := &Binder{
		Prog:      prog,
		Spec:      spec,
		templates: make(map[ast.DeclID]*aggregateTemplate),
	}
	for _, id := range prog.DeclIDs() {
		d := prog.Decl(id)
		if !d.IsAggregate() {
			continue
		}
		t := &aggregateTemplate{binder: b, decl: id}
		b.templates[id] = t
		spec.Register(t)
	}
	return b
}

// DeclIdentity is the generic identity of an aggregate declaration.
func DeclIdentity(id ast.DeclID) types.GenericID {
	return types.GenericID("decl#" + strconv.FormatUint(uint64(id), 10))
}

// Instance specializes the aggregate decl with args.
func (b *Binder) Instance(decl ast.DeclID, args []types.Handle) types.Handle {
	if _, ok := b.templates[decl]; !ok {
		diag.Internalf("instance: declaration %d is not an aggregate", decl)
	}
	return b.Spec.Specialize(DeclIdentity(decl), args)
}

// Resolve specializes the type expression t with generic parameters bound to
// scope. NoTypeID resolves to Void.
func (b *Binder) Resolve(t ast.TypeID, scope []types.Handle) types.Handle {
	if !t.IsValid() {
		return types.Void
	}
	te := b.Prog.TypeExpr(t)
	if te == nil {
		diag.Internalf("resolve: type expression %d is missing", t)
	}
	switch te.Kind {
	case ast.TypeVoid:
		return types.Void
	case ast.TypePrim:
		return b.Spec.Prim(te.Prim)
	case ast.TypeNamed:
		return b.Instance(te.Decl, b.ResolveAll(te.Args, scope))
	case ast.TypeParam:
		if int(te.Index) >= len(scope) {
			diag.Internalf("resolve: generic parameter %d outside a scope of %d", te.Index, len(scope))
		}
		return scope[te.Index]
	case ast.TypePointer:
		return b.Spec.Pointer(b.Resolve(te.Elem, scope))
	case ast.TypeFunc:
		return b.Spec.Func(b.ResolveAll(te.Args, scope), b.Resolve(te.Elem, scope))
	}
	diag.Internalf("resolve: unknown type kind %v", te.Kind)
	return types.Void
}

func (b *Binder) ResolveAll(ts []ast.TypeID, scope []types.Handle) []types.Handle {
	if len(ts) == 0 {
		return nil
	}
	out := make([]types.Handle, len(ts))
	for i, t := range ts {
		out[i] = b.Resolve(t, scope)
	}
	return out
}

// Mangle renders name<arg,...> for a specialization.
func (b *Binder) Mangle(name string, args []types.Handle) string {
	if len(args) == 0 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(b.Spec.Name(a))
	}
	sb.WriteByte('>')
	return sb.String()
}
