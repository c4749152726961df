package wasm

// Binary format constants used by the encoder.
var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6D}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionTable    byte = 4
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionElement  byte = 9
	sectionCode     byte = 10
	sectionData     byte = 11
)

const (
	kindFunc   byte = 0x00
	kindTable  byte = 0x01
	kindMemory byte = 0x02
	kindGlobal byte = 0x03

	typeFunc     byte = 0x60
	typeFuncref  byte = 0x70
	blockEmpty   byte = 0x40
	limitsMinMax byte = 0x01
	globalConst  byte = 0x00
	globalVar    byte = 0x01
)

const (
	opUnreachable  byte = 0x00
	opBlock        byte = 0x02
	opLoop         byte = 0x03
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0B
	opBr           byte = 0x0C
	opBrIf         byte = 0x0D
	opReturn       byte = 0x0F
	opCall         byte = 0x10
	opCallIndirect byte = 0x11
	opDrop         byte = 0x1A
	opLocalGet     byte = 0x20
	opLocalSet     byte = 0x21
	opGlobalGet    byte = 0x23
	opGlobalSet    byte = 0x24
	opMemorySize   byte = 0x3F
	opMemoryGrow   byte = 0x40
	opI32Const     byte = 0x41
	opI64Const     byte = 0x42
	opF32Const     byte = 0x43
	opF64Const     byte = 0x44
)

// Loads and stores by stored width.
const (
	opI32Load    byte = 0x28
	opI64Load    byte = 0x29
	opF32Load    byte = 0x2A
	opF64Load    byte = 0x2B
	opI32Load8S  byte = 0x2C
	opI32Load8U  byte = 0x2D
	opI32Load16S byte = 0x2E
	opI32Load16U byte = 0x2F
	opI32Store   byte = 0x36
	opI64Store   byte = 0x37
	opF32Store   byte = 0x38
	opF64Store   byte = 0x39
	opI32Store8  byte = 0x3A
	opI32Store16 byte = 0x3B
)

// Numeric opcodes are named by their 32-bit variant. The 64-bit variant of
// every integer operation sits i64Shift (arithmetic) or i64CmpShift
// (comparisons) further on; float variants likewise use f64Shift and
// f64CmpShift.
const (
	opI32Eqz    byte = 0x45
	opI32Eq     byte = 0x46
	opI32Ne     byte = 0x47
	opI32LtS    byte = 0x48
	opI32LtU    byte = 0x49
	opI32GtS    byte = 0x4A
	opI32GtU    byte = 0x4B
	opI32LeS    byte = 0x4C
	opI32LeU    byte = 0x4D
	opI32GeS    byte = 0x4E
	opI32GeU    byte = 0x4F
	opF32Eq     byte = 0x5B
	opF32Ne     byte = 0x5C
	opF32Lt     byte = 0x5D
	opF32Gt     byte = 0x5E
	opF32Le     byte = 0x5F
	opF32Ge     byte = 0x60
	opI32Clz    byte = 0x67
	opI32Ctz    byte = 0x68
	opI32Popcnt byte = 0x69
	opI32Add    byte = 0x6A
	opI32Sub    byte = 0x6B
	opI32Mul    byte = 0x6C
	opI32DivS   byte = 0x6D
	opI32DivU   byte = 0x6E
	opI32RemS   byte = 0x6F
	opI32RemU   byte = 0x70
	opI32And    byte = 0x71
	opI32Or     byte = 0x72
	opI32Xor    byte = 0x73
	opI32Shl    byte = 0x74
	opI32ShrS   byte = 0x75
	opI32ShrU   byte = 0x76
	opF32Abs    byte = 0x8B
	opF32Neg    byte = 0x8C
	opF32Ceil   byte = 0x8D
	opF32Floor  byte = 0x8E
	opF32Sqrt   byte = 0x91
	opF32Add    byte = 0x92
	opF32Sub    byte = 0x93
	opF32Mul    byte = 0x94
	opF32Div    byte = 0x95

	i64Shift    byte = 0x12
	i64CmpShift byte = 0x0B
	f64Shift    byte = 0x0E
	f64CmpShift byte = 0x06
)

// Conversions.
const (
	opI32WrapI64     byte = 0xA7
	opI32TruncF32S   byte = 0xA8
	opI32TruncF32U   byte = 0xA9
	opI32TruncF64S   byte = 0xAA
	opI32TruncF64U   byte = 0xAB
	opI64ExtendI32S  byte = 0xAC
	opI64ExtendI32U  byte = 0xAD
	opI64TruncF32S   byte = 0xAE
	opI64TruncF32U   byte = 0xAF
	opI64TruncF64S   byte = 0xB0
	opI64TruncF64U   byte = 0xB1
	opF32ConvertI32S byte = 0xB2
	opF32ConvertI32U byte = 0xB3
	opF32ConvertI64S byte = 0xB4
	opF32ConvertI64U byte = 0xB5
	opF32DemoteF64   byte = 0xB6
	opF64ConvertI32S byte = 0xB7
	opF64ConvertI32U byte = 0xB8
	opF64ConvertI64S byte = 0xB9
	opF64ConvertI64U byte = 0xBA
	opF64PromoteF32  byte = 0xBB
)
