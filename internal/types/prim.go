package types

// Prim is a primitive storage kind. Every value is ultimately a sequence of
// prims, both in IR slots and in linear memory.
type Prim uint8

const (
	PrimNone Prim = iota
	Bool
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
)

// PtrPrim stores pointers, class references and function table indices.
const PtrPrim = UInt32

// PtrSize is the byte size of PtrPrim.
const PtrSize = 4

var primNames = [...]string{
	PrimNone: "none",
	Bool:     "bool",
	Int8:     "i8",
	UInt8:    "u8",
	Int16:    "i16",
	UInt16:   "u16",
	Int32:    "i32",
	UInt32:   "u32",
	Int64:    "i64",
	UInt64:   "u64",
	Float32:  "f32",
	Float64:  "f64",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "prim?"
}

// Size is the number of bytes p occupies in linear memory.
func (p Prim) Size() int {
	switch p {
	case Bool, Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	case PrimNone:
	}
	return 0
}

func (p Prim) Signed() bool {
	return p == Int8 || p == Int16 || p == Int32 || p == Int64
}

func (p Prim) IsFloat() bool {
	return p == Float32 || p == Float64
}

func (p Prim) IsInt() bool {
	return p != PrimNone && !p.IsFloat()
}

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return "val?"
}

// ValType is the register type holding p. Narrow integers widen to i32.
func (p Prim) ValType() ValType {
	switch p {
	case Int64, UInt64:
		return I64
	case Float32:
		return F32
	case Float64:
		return F64
	case PrimNone, Bool, Int8, UInt8, Int16, UInt16, Int32, UInt32:
	}
	return I32
}

// ParsePrim maps a primitive name back to its Prim.
func ParsePrim(name string) (Prim, bool) {
	for i, n := range primNames {
		if n == name && Prim(i) != PrimNone {
			return Prim(i), true
		}
	}
	return PrimNone, false
}

// Bits is the register width of v.
func (v ValType) Bits() int {
	if v == I64 || v == F64 {
		return 64
	}
	return 32
}

// AsSigned returns the signed integer prim of the same width as p.
func (p Prim) AsSigned() Prim {
	switch p {
	case UInt8:
		return Int8
	case UInt16:
		return Int16
	case UInt32, Bool:
		return Int32
	case UInt64:
		return Int64
	case PrimNone, Int8, Int16, Int32, Int64, Float32, Float64:
	}
	return p
}
