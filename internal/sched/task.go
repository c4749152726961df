package sched

import (
	"strconv"
	"strings"

	"keel/internal/ast"
	"keel/internal/mono"
	"keel/internal/types"
)

type Kind uint8

const (
	TaskFunc Kind = iota
	TaskLayout
	TaskConstructor
	TaskOperator
	TaskMethod
	TaskEntry
)

func (k Kind) String() string {
	switch k {
	case TaskFunc:
		return "func"
	case TaskLayout:
		return "layout"
	case TaskConstructor:
		return "constructor"
	case TaskOperator:
		return "operator"
	case TaskMethod:
		return "method"
	case TaskEntry:
		return "entry"
	}
	return "task?"
}

// Task is one unit of compilation discovered by the scheduler.
type Task struct {
	Kind Kind
	// Decl is the function declaration; zero for layout and entry tasks.
	Decl ast.DeclID
	// Owner is the aggregate for methods, operators, constructors and
	// layouts.
	Owner types.Handle
	// Args are the function's own generic arguments.
	Args []types.Handle
	// Name is the mangled symbol the task is emitted under.
	Name string
	// Indirect marks functions referenced as first-class values.
	Indirect bool
}

// Emits reports whether the task produces a function body.
func (t *Task) Emits() bool {
	return t.Kind != TaskLayout
}

func taskKey(kind Kind, decl ast.DeclID, owner types.Handle, args []types.Handle) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(kind)))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(uint64(decl), 10))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(uint64(owner), 10))
	for _, a := range args {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(uint64(a), 10))
	}
	return sb.String()
}

// FuncName is the symbol of a plain function instantiated with args.
func FuncName(b *mono.Binder, decl ast.DeclID, args []types.Handle) string {
	return b.Mangle(b.Prog.Decl(decl).Name, args)
}

// MemberName is the symbol of a method, operator or constructor of owner.
func MemberName(b *mono.Binder, owner types.Handle, decl ast.DeclID) string {
	d := b.Prog.Decl(decl)
	prefix := b.Spec.Name(owner) + "."
	switch d.Func.Kind {
	case ast.FuncOperator:
		return prefix + "operator" + d.Func.Op.String()
	case ast.FuncConstructor:
		return prefix + "init"
	case ast.FuncMethod, ast.FuncPlain:
	}
	return prefix + d.Name
}
