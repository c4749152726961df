package ast

import "keel/internal/source"

type DeclKind uint8

const (
	DeclFunc DeclKind = iota
	// DeclStruct is a value aggregate: copied by value, laid out inline.
	DeclStruct
	// DeclClass is a heap aggregate: values are pointers to an instance.
	DeclClass
	DeclGlobal
)

func (k DeclKind) String() string {
	switch k {
	case DeclFunc:
		return "func"
	case DeclStruct:
		return "struct"
	case DeclClass:
		return "class"
	case DeclGlobal:
		return "global"
	}
	return "unknown"
}

type DecoratorKind uint8

const (
	DecExport DecoratorKind = iota + 1
	DecForeign
	DecInline
	DecNative
	// DecCompile forces compilation of a function nobody calls.
	DecCompile
)

type Decorator struct {
	Kind DecoratorKind `msgpack:"k"`
	Arg  string        `msgpack:"a,omitempty"`
}

func Export(name string) Decorator { return Decorator{Kind: DecExport, Arg: name} }
func Foreign(sym string) Decorator { return Decorator{Kind: DecForeign, Arg: sym} }
func Inline() Decorator            { return Decorator{Kind: DecInline} }
func Native() Decorator            { return Decorator{Kind: DecNative} }
func CompileAlways() Decorator     { return Decorator{Kind: DecCompile} }

type FuncKind uint8

const (
	FuncPlain FuncKind = iota
	FuncMethod
	FuncOperator
	FuncConstructor
)

type LocalKind uint8

const (
	LocalParam LocalKind = iota
	// LocalConst is an immutable binding (`let`).
	LocalConst
	// LocalVar is a mutable binding (`var`).
	LocalVar
)

type Local struct {
	Name string      `msgpack:"n"`
	Type TypeID      `msgpack:"t"`
	Kind LocalKind   `msgpack:"k"`
	Span source.Span `msgpack:"s"`
}

type FuncData struct {
	Kind FuncKind `msgpack:"k"`
	// Owner is the aggregate declaring a method, operator or constructor.
	Owner  DeclID    `msgpack:"o,omitempty"`
	Op     Op        `msgpack:"op,omitempty"`
	Params []LocalID `msgpack:"p,omitempty"`
	Result TypeID    `msgpack:"r,omitempty"`
	Locals []Local   `msgpack:"l,omitempty"`
	Body   []StmtID  `msgpack:"b,omitempty"`
	// HasBody is false for foreign and native functions.
	HasBody bool `msgpack:"hb"`
}

type Field struct {
	Name string      `msgpack:"n"`
	Type TypeID      `msgpack:"t"`
	Span source.Span `msgpack:"s"`
}

type AggregateData struct {
	Fields    []Field  `msgpack:"f,omitempty"`
	Methods   []DeclID `msgpack:"m,omitempty"`
	Operators []DeclID `msgpack:"o,omitempty"`
	// Init is the user constructor, if any.
	Init DeclID `msgpack:"i,omitempty"`
}

type GlobalData struct {
	Type    TypeID `msgpack:"t"`
	Init    ExprID `msgpack:"i,omitempty"`
	Mutable bool   `msgpack:"m"`
}

type Decl struct {
	Kind       DeclKind       `msgpack:"k"`
	Name       string         `msgpack:"n"`
	Span       source.Span    `msgpack:"s"`
	Generics   []string       `msgpack:"g,omitempty"`
	Decorators []Decorator    `msgpack:"dec,omitempty"`
	Func       *FuncData      `msgpack:"fn,omitempty"`
	Aggregate  *AggregateData `msgpack:"agg,omitempty"`
	Global     *GlobalData    `msgpack:"gl,omitempty"`
}

// Decorator returns the first decorator of kind k.
func (d *Decl) Decorator(k DecoratorKind) (Decorator, bool) {
	if d == nil {
		return Decorator{}, false
	}
	for _, dec := range d.Decorators {
		if dec.Kind == k {
			return dec, true
		}
	}
	return Decorator{}, false
}

func (d *Decl) Has(k DecoratorKind) bool {
	_, ok := d.Decorator(k)
	return ok
}

func (d *Decl) IsGeneric() bool {
	return d != nil && len(d.Generics) > 0
}

func (d *Decl) IsAggregate() bool {
	return d != nil && (d.Kind == DeclStruct || d.Kind == DeclClass)
}

// FieldIndex returns the position of the named field of an aggregate.
func (d *Decl) FieldIndex(name string) (int, bool) {
	if d == nil || d.Aggregate == nil {
		return 0, false
	}
	for i, f := range d.Aggregate.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}
