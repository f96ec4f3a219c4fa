package irep

import (
	"encoding/binary"
	"strconv"
)

// Encode serializes root into the binary image format Load parses. The
// real compiler (out of scope per spec §1) is the production encoder; this
// one exists so tests can build synthetic IREP images without a C-string
// fixture file for every case.
func Encode(root *IREP) []byte {
	var buf []byte
	buf = append(buf, Magic[:]...)
	buf = appendU16(buf, 1) // version
	body := encodeNode(root)
	buf = appendU32(buf, uint32(len(body)))
	buf = appendU32(buf, 0) // no line-debug section
	buf = append(buf, body...)
	return buf
}

func encodeNode(n *IREP) []byte {
	var buf []byte
	buf = appendU16(buf, uint16(n.NumRegisters))
	buf = appendU16(buf, uint16(len(n.Locals)))
	buf = appendU16(buf, uint16(len(n.Children)))
	buf = appendU16(buf, uint16(len(n.Pool)))
	for _, lit := range n.Pool {
		buf = append(buf, byte(lit.Kind))
		switch lit.Kind {
		case LitInt:
			buf = appendU32(buf, uint32(int32(lit.I)))
		case LitFloat:
			buf = appendCStr(buf, formatFloat(lit.F))
		case LitString:
			buf = appendCStr(buf, lit.S)
		}
	}
	for _, name := range n.Locals {
		buf = appendCStr(buf, name)
	}
	buf = appendU32(buf, uint32(len(n.Code)))
	buf = append(buf, n.Code...)
	for _, child := range n.Children {
		buf = append(buf, encodeNode(child)...)
	}
	return buf
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendCStr(buf []byte, s string) []byte {
	buf = appendU16(buf, uint16(len(s)))
	buf = append(buf, s...)
	return append(buf, 0)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
