package ir

import (
	"fortio.org/safecast"

	"keel/internal/diag"
	"keel/internal/types"
)

// Function is one lowered function: a block tree over typed variables.
// Variables 0..len(Params)-1 are the native parameters.
type Function struct {
	Name   string
	Params []types.Prim
	Result types.Prim
	// Vars records the prim of every variable.
	Vars []types.Prim
	// Blocks is the arena; index 0 is unused so NoBlock stays invalid.
	Blocks []*Block
	Body   []BlockID

	Export  string
	Inline  bool
	InTable bool
}

func NewFunction(name string, params []types.Prim, result types.Prim) *Function {
	f := &Function{
		Name:   name,
		Params: params,
		Result: result,
		Blocks: []*Block{nil},
	}
	for _, p := range params {
		f.NewVar(p)
	}
	return f
}

func (f *Function) NewVar(p types.Prim) Var {
	n, err := safecast.Conv[uint32](len(f.Vars))
	if err != nil {
		diag.Internalf("%s: variable overflow", f.Name)
	}
	f.Vars = append(f.Vars, p)
	return Var(n)
}

// VarPrim returns the prim of v; unknown variables are a lowering bug.
func (f *Function) VarPrim(v Var) types.Prim {
	if int(v) >= len(f.Vars) {
		diag.Internalf("%s: variable v%d was never allocated", f.Name, v)
	}
	return f.Vars[v]
}

func (f *Function) NewBlock(kind BlockKind) *Block {
	n, err := safecast.Conv[uint32](len(f.Blocks))
	if err != nil {
		diag.Internalf("%s: block overflow", f.Name)
	}
	b := &Block{ID: BlockID(n), Kind: kind}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) Block(id BlockID) *Block {
	if id == NoBlock || int(id) >= len(f.Blocks) {
		diag.Internalf("%s: block %d does not exist", f.Name, id)
	}
	return f.Blocks[id]
}

func (f *Function) Signature() Signature {
	return Signature{Params: f.Params, Result: f.Result}
}

// Walk calls fn for every block reachable from Body in tree order.
func (f *Function) Walk(fn func(b *Block)) {
	var walk func(ids []BlockID)
	walk = func(ids []BlockID) {
		for _, id := range ids {
			b := f.Block(id)
			fn(b)
			walk(b.Body)
			walk(b.Else)
		}
	}
	walk(f.Body)
}
