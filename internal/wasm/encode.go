package wasm

import (
	"math"

	"fortio.org/safecast"

	"keel/internal/diag"
)

// appendU32 appends v as unsigned LEB128.
func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

// appendS64 appends v as signed LEB128; i32 immediates use it too.
func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendF32(b []byte, f float32) []byte {
	u := math.Float32bits(f)
	return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}

func appendF64(b []byte, f float64) []byte {
	u := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		b = append(b, byte(u>>(8*i)))
	}
	return b
}

// count converts a Go length into a u32 vector length.
func count(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		diag.Internalf("wasm: length %d exceeds u32", n)
	}
	return v
}

func appendLen(b []byte, n int) []byte {
	return appendU32(b, count(n))
}

func appendName(b []byte, s string) []byte {
	b = appendLen(b, len(s))
	return append(b, s...)
}

// appendVector prefixes contents with the element count n.
func appendVector(b []byte, n int, contents []byte) []byte {
	b = appendLen(b, n)
	return append(b, contents...)
}

// appendSection frames body as section id.
func appendSection(b []byte, id byte, body []byte) []byte {
	b = append(b, id)
	b = appendLen(b, len(body))
	return append(b, body...)
}
