package ast

import "keel/internal/source"

// Program is a fully checked compilation input.
type Program struct {
	Files source.Files    `msgpack:"files"`
	Decls Arena[Decl]     `msgpack:"decls"`
	Stmts Arena[Stmt]     `msgpack:"stmts"`
	Exprs Arena[Expr]     `msgpack:"exprs"`
	Types Arena[TypeExpr] `msgpack:"types"`
	// Roots are functions compiled even when nothing references them.
	Roots []DeclID `msgpack:"roots,omitempty"`
	// Main is the top-level statement list run by the program entry.
	Main       []StmtID `msgpack:"main,omitempty"`
	MainLocals []Local  `msgpack:"mainLocals,omitempty"`
}

func NewProgram() *Program {
	return &Program{}
}

func (p *Program) Decl(id DeclID) *Decl         { return p.Decls.Get(uint32(id)) }
func (p *Program) Stmt(id StmtID) *Stmt         { return p.Stmts.Get(uint32(id)) }
func (p *Program) Expr(id ExprID) *Expr         { return p.Exprs.Get(uint32(id)) }
func (p *Program) TypeExpr(id TypeID) *TypeExpr { return p.Types.Get(uint32(id)) }

// Locals returns the local table of fn, or the top-level locals for NoDeclID.
func (p *Program) Locals(fn DeclID) []Local {
	if !fn.IsValid() {
		return p.MainLocals
	}
	d := p.Decl(fn)
	if d == nil || d.Func == nil {
		return nil
	}
	return d.Func.Locals
}

// DeclIDs lists every declaration in source order.
func (p *Program) DeclIDs() []DeclID {
	n := p.Decls.Len()
	out := make([]DeclID, 0, n)
	for i := uint32(1); i <= n; i++ {
		out = append(out, DeclID(i))
	}
	return out
}
