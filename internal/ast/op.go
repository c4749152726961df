package ast

// Op is a builtin or user-overloadable operator.
type Op uint8

const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// OpLogAnd and OpLogOr short-circuit.
	OpLogAnd
	OpLogOr
	OpNeg
	OpNot
	OpBitNot
)

var opSymbols = [...]string{
	OpNone:   "?",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpRem:    "%",
	OpAnd:    "&",
	OpOr:     "|",
	OpXor:    "^",
	OpShl:    "<<",
	OpShr:    ">>",
	OpEq:     "==",
	OpNe:     "!=",
	OpLt:     "<",
	OpLe:     "<=",
	OpGt:     ">",
	OpGe:     ">=",
	OpLogAnd: "&&",
	OpLogOr:  "||",
	OpNeg:    "neg",
	OpNot:    "!",
	OpBitNot: "~",
}

func (op Op) String() string {
	if int(op) < len(opSymbols) {
		return opSymbols[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean from two operands.
func (op Op) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

func (op Op) IsUnary() bool {
	return op == OpNeg || op == OpNot || op == OpBitNot
}
