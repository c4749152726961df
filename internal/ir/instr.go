package ir

import "keel/internal/types"

// Var is an IR variable; indices are local to one Function.
type Var uint32

// Op enumerates instruction opcodes.
type Op uint8

const (
	// OpConst sets Dst[0] to Imm (integers) or Float.
	OpConst Op = iota
	// OpCopy sets Dst[i] to Args[i].
	OpCopy
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
	OpNeg
	// OpEqz yields 1 when Args[0] is zero.
	OpEqz
	// OpConvert converts Args[0] from From to Storage.
	OpConvert
	// OpLoad reads Storage at Args[0]+Offset.
	OpLoad
	// OpStore writes Args[1] as Storage at Args[0]+Offset.
	OpStore
	// OpCall calls Callee; Dst holds at most the native result.
	OpCall
	// OpCallIndirect calls through the table; the last arg is the index.
	OpCallIndirect
	// OpFuncRef yields the table index of Callee.
	OpFuncRef
	// OpAddr yields the absolute address Imm bytes into entry Index of Zone.
	OpAddr
	// OpHeapBase reads the immutable heap base global.
	OpHeapBase
	OpGlobalGet
	OpGlobalSet
	OpReturn
	// OpBreak leaves the loop or breakable block Target.
	OpBreak
	// OpContinue jumps back to the head of loop Target.
	OpContinue
	// OpBreakIf leaves Target when Args[0] is non-zero.
	OpBreakIf
	// OpNative is an intrinsic named by Callee.
	OpNative
	OpUnreachable
	// OpPhi merges Args into Dst[0] at a join; it emits no code itself.
	OpPhi
)

var opNames = [...]string{
	OpConst:        "const",
	OpCopy:         "copy",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpDiv:          "div",
	OpRem:          "rem",
	OpAnd:          "and",
	OpOr:           "or",
	OpXor:          "xor",
	OpShl:          "shl",
	OpShr:          "shr",
	OpEq:           "eq",
	OpNe:           "ne",
	OpLt:           "lt",
	OpLe:           "le",
	OpGt:           "gt",
	OpGe:           "ge",
	OpNeg:          "neg",
	OpEqz:          "eqz",
	OpConvert:      "convert",
	OpLoad:         "load",
	OpStore:        "store",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpFuncRef:      "funcref",
	OpAddr:         "addr",
	OpHeapBase:     "heap_base",
	OpGlobalGet:    "global.get",
	OpGlobalSet:    "global.set",
	OpReturn:       "return",
	OpBreak:        "break",
	OpContinue:     "continue",
	OpBreakIf:      "break_if",
	OpNative:       "native",
	OpUnreachable:  "unreachable",
	OpPhi:          "phi",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op?"
}

// Zone is a region of linear memory whose base address is fixed at emission.
type Zone uint8

const (
	ZoneData Zone = iota
	ZoneGlobal
	ZoneScratch
)

func (z Zone) String() string {
	switch z {
	case ZoneData:
		return "data"
	case ZoneGlobal:
		return "global"
	case ZoneScratch:
		return "scratch"
	}
	return "zone?"
}

// Copy is one assignment of a parallel copy group on a control-flow edge.
type Copy struct {
	Dst Var
	Src Var
}

// Signature describes a native call signature.
type Signature struct {
	Params []types.Prim
	Result types.Prim
}

type Instr struct {
	Op      Op
	Dst     []Var
	Args    []Var
	Storage types.Prim
	From    types.Prim
	Imm     int64
	Float   float64
	Offset  uint32
	Callee  string
	Sig     *Signature
	Zone    Zone
	Index   int
	Target  BlockID
	// Copies feed the phis at the branch target; only break-family
	// instructions carry them.
	Copies []Copy
}

// IsBranch reports whether the instruction transfers control to Target.
func (in *Instr) IsBranch() bool {
	return in.Op == OpBreak || in.Op == OpContinue || in.Op == OpBreakIf
}

// Terminates reports whether control never falls through the instruction.
func (in *Instr) Terminates() bool {
	switch in.Op {
	case OpReturn, OpBreak, OpContinue, OpUnreachable:
		return true
	case OpNative:
		return in.Callee == "unreachable"
	}
	return false
}

// Pure instructions may be removed when their results are unused.
func (in *Instr) Pure() bool {
	switch in.Op {
	case OpConst, OpCopy, OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr, OpXor,
		OpShl, OpShr, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpNeg, OpEqz, OpConvert,
		OpLoad, OpFuncRef, OpAddr, OpHeapBase, OpGlobalGet, OpPhi:
		return true
	case OpNative:
		return PureIntrinsic(in.Callee)
	}
	return false
}

// Reproducible values are cheaper to replay at each use than to keep in a
// local.
func (in *Instr) Reproducible() bool {
	switch in.Op {
	case OpConst, OpAddr, OpFuncRef, OpHeapBase:
		return true
	}
	return false
}

// Intrinsics callable through `native` declarations.
var intrinsics = map[string]bool{
	"sqrt":        true,
	"floor":       true,
	"ceil":        true,
	"abs":         true,
	"clz":         true,
	"ctz":         true,
	"popcnt":      true,
	"memory_size": false,
	"memory_grow": false,
	"unreachable": false,
}

// IsIntrinsic reports whether name is a known native intrinsic.
func IsIntrinsic(name string) bool {
	_, ok := intrinsics[name]
	return ok
}

func PureIntrinsic(name string) bool {
	return intrinsics[name]
}
