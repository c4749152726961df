package ir

// BlockID addresses a block inside its Function's arena.
type BlockID uint32

// NoBlock marks a missing block reference.
const NoBlock BlockID = 0

type BlockKind uint8

const (
	BlockBasic BlockKind = iota
	// BlockIf runs Body when Cond is non-zero.
	BlockIf
	// BlockIfElse runs Body or Else.
	BlockIfElse
	// BlockLoop repeats Body until a break leaves it.
	BlockLoop
	// BlockBreakable runs Body once; breaks jump past it.
	BlockBreakable
)

func (k BlockKind) String() string {
	switch k {
	case BlockBasic:
		return "basic"
	case BlockIf:
		return "if"
	case BlockIfElse:
		return "ifelse"
	case BlockLoop:
		return "loop"
	case BlockBreakable:
		return "breakable"
	}
	return "block?"
}

// Block is one node of a function's structured block tree.
type Block struct {
	ID     BlockID
	Kind   BlockKind
	Instrs []Instr
	Cond   Var
	Body   []BlockID
	Else   []BlockID

	// ExitCopies run when a basic block falls through to its successor.
	ExitCopies []Copy
	// AroundCopies run when an if skips its body.
	AroundCopies []Copy
	// EntryCopies run when a loop is entered from above.
	EntryCopies []Copy
}

// Structured reports whether b contains nested blocks.
func (b *Block) Structured() bool {
	return b.Kind != BlockBasic
}

// Terminated reports whether the last instruction never falls through.
func (b *Block) Terminated() bool {
	if b.Kind != BlockBasic || len(b.Instrs) == 0 {
		return false
	}
	return b.Instrs[len(b.Instrs)-1].Terminates()
}

// Empty reports whether b is a basic block with nothing to execute.
func (b *Block) Empty() bool {
	return b.Kind == BlockBasic && len(b.Instrs) == 0 && len(b.ExitCopies) == 0
}
