package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Reachability scheduling
	SchedInfo            Code = 4000
	SchedExportGeneric   Code = 4001
	SchedDuplicateExport Code = 4002
	SchedBadNative       Code = 4003
	SchedForeignBody     Code = 4004
	SchedBadExportName   Code = 4005
	SchedNativeBody      Code = 4006

	// Layout
	LayoutInfo     Code = 4100
	LayoutCircular Code = 4101

	// Lowering
	LowerInfo         Code = 4200
	LowerUnsupported  Code = 4201
	LowerStringNotNFC Code = 4202

	// Emission
	EmitInfo           Code = 4300
	EmitMemoryTooSmall Code = 4301
)

var codeDescription = map[Code]string{
	UnknownCode:          "unknown error",
	SchedInfo:            "scheduling information",
	SchedExportGeneric:   "generic function cannot be exported",
	SchedDuplicateExport: "duplicate export name",
	SchedBadNative:       "unknown native intrinsic",
	SchedForeignBody:     "foreign function must not have a body",
	SchedBadExportName:   "invalid export name",
	SchedNativeBody:      "native function must not have a body",
	LayoutInfo:           "layout information",
	LayoutCircular:       "circular value containment",
	LowerInfo:            "lowering information",
	LowerUnsupported:     "construct not supported by this backend",
	LowerStringNotNFC:    "string literal is not in Unicode NFC",
	EmitInfo:             "emission information",
	EmitMemoryTooSmall:   "static data does not fit into configured memory",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 4000 && ic < 4100:
		return fmt.Sprintf("SCH%04d", ic)
	case ic >= 4100 && ic < 4200:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 4200 && ic < 4300:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 4300 && ic < 4400:
		return fmt.Sprintf("EMT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
