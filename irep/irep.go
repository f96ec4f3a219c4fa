// Package irep implements the instruction-representation tree and its
// binary loader: spec.md §4.3. An IREP image is produced by an external
// bytecode compiler (out of scope for this module, per spec §1) and handed
// to the VM as a byte slice; this package is the only place that parses
// that format.
//
// There is no existing Go teacher for this exact binary shape in the
// example pack, so the wire format below is specified directly from
// spec.md §4.3 (big-endian fields, 2-byte length-prefixed + NUL-terminated
// pool strings, portable-decimal floats, pre-order recursive children);
// the surrounding record/recursion style (struct-per-node, Load* functions
// returning (value, error), explicit "truncated section" sentinels) follows
// wudi-hey/registry.go's plain-data-record conventions.
package irep

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/golang-lru"
)

// Magic identifies a valid IREP image; the loader rejects anything else.
var Magic = [4]byte{'I', 'R', 'P', '1'}

// LitKind tags one entry of an IREP's literal pool.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitString
)

// Literal is one pre-decoded entry of an IREP's literal pool.
type Literal struct {
	Kind LitKind
	I    int64
	F    float64
	S    string
}

// IREP is one node of the instruction-representation tree: a method or
// block body, its required register count, its literal pool, its local
// symbol table (names of locals declared directly in this body), and its
// ordered list of child IREPs (nested blocks/methods), referenced from the
// bytecode by small index per spec §3.
type IREP struct {
	NumRegisters int
	NumLocals    int
	Locals       []string // local variable names, index == slot number; also the name table that SEND, GETGV and the other symbol-operand opcodes index
	Pool         []Literal
	Children     []*IREP
	Code         []byte
}

// Child returns the nth child IREP, or an error if idx is out of range —
// every BLOCK/METHOD opcode operand is validated through this accessor
// rather than a bare slice index.
func (r *IREP) Child(idx int) (*IREP, error) {
	if idx < 0 || idx >= len(r.Children) {
		return nil, fmt.Errorf("irep: child index %d out of range (have %d)", idx, len(r.Children))
	}
	return r.Children[idx], nil
}

// Errors returned by Load for a malformed image. No partial tree is ever
// returned alongside a non-nil error (spec §4.3: "no partial loads are
// retained").
var (
	ErrBadMagic    = errors.New("irep: magic mismatch")
	ErrTruncated   = errors.New("irep: truncated section")
	ErrUnsupported = errors.New("irep: unsupported version")
)

// reader is a cursor over the raw image bytes with bounds-checked reads.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// cstr reads a 2-byte big-endian length prefix, that many raw bytes, then
// discards one trailing zero terminator (spec §4.3).
func (r *reader) cstr() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if _, err := r.bytes(1); err != nil { // zero terminator
		return "", err
	}
	return string(b), nil
}

// Header fields preceding the IREP tree section. LineDebug sections, if
// present, are skipped entirely (spec §4.3: "optional line-number debug
// sections (skipped)").
type Header struct {
	Version      uint16
	IrepSize     uint32
	LineDebugLen uint32
}

// imageCache memoizes a parsed tree by the SHA-256 of its raw bytes, so
// reloading an image the embedder has already handed in this process skips
// re-walking it node by node — grounded on wudi-hey/pkg/fpm/opcache's
// compiled-script cache, adapted from a file-timestamp key to a pure
// content hash since an IREP image never changes shape once issued.
var imageCache, _ = lru.New(128)

// Load parses a complete IREP image: header, then the pre-order IREP tree.
func Load(data []byte) (*IREP, error) {
	key := sha256.Sum256(data)
	if cached, ok := imageCache.Get(key); ok {
		return cached.(*IREP), nil
	}
	root, err := load(data)
	if err != nil {
		return nil, err
	}
	imageCache.Add(key, root)
	return root, nil
}

func load(data []byte) (*IREP, error) {
	r := &reader{buf: data}
	var magic [4]byte
	mb, err := r.bytes(4)
	if err != nil {
		return nil, ErrBadMagic
	}
	copy(magic[:], mb)
	if magic != Magic {
		return nil, ErrBadMagic
	}
	version, err := r.u16()
	if err != nil {
		return nil, ErrTruncated
	}
	if version != 1 {
		return nil, ErrUnsupported
	}
	irepSize, err := r.u32()
	if err != nil {
		return nil, ErrTruncated
	}
	lineDebugLen, err := r.u32()
	if err != nil {
		return nil, ErrTruncated
	}
	_ = irepSize
	root, err := readIrepNode(r)
	if err != nil {
		return nil, err
	}
	if lineDebugLen > 0 {
		if _, err := r.bytes(int(lineDebugLen)); err != nil {
			return nil, ErrTruncated
		}
	}
	return root, nil
}

func readIrepNode(r *reader) (*IREP, error) {
	numRegs, err := r.u16()
	if err != nil {
		return nil, ErrTruncated
	}
	numLocals, err := r.u16()
	if err != nil {
		return nil, ErrTruncated
	}
	numChildren, err := r.u16()
	if err != nil {
		return nil, ErrTruncated
	}
	poolLen, err := r.u16()
	if err != nil {
		return nil, ErrTruncated
	}
	pool := make([]Literal, poolLen)
	for i := range pool {
		kind, err := r.u8()
		if err != nil {
			return nil, ErrTruncated
		}
		switch LitKind(kind) {
		case LitInt:
			v, err := r.u32()
			if err != nil {
				return nil, ErrTruncated
			}
			pool[i] = Literal{Kind: LitInt, I: int64(int32(v))}
		case LitFloat:
			s, err := r.cstr()
			if err != nil {
				return nil, ErrTruncated
			}
			f, perr := strconv.ParseFloat(s, 64)
			if perr != nil {
				return nil, fmt.Errorf("irep: malformed float literal %q: %w", s, perr)
			}
			pool[i] = Literal{Kind: LitFloat, F: f}
		case LitString:
			s, err := r.cstr()
			if err != nil {
				return nil, ErrTruncated
			}
			pool[i] = Literal{Kind: LitString, S: s}
		default:
			return nil, fmt.Errorf("irep: unknown literal kind %d", kind)
		}
	}

	locals := make([]string, numLocals)
	for i := range locals {
		s, err := r.cstr()
		if err != nil {
			return nil, ErrTruncated
		}
		locals[i] = s
	}

	codeLen, err := r.u32()
	if err != nil {
		return nil, ErrTruncated
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, ErrTruncated
	}
	// Copy the bytecode out of the shared input buffer so the returned
	// tree never aliases caller-owned memory (spec §8: "loading and
	// walking an IREP image does not mutate its bytes").
	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)

	node := &IREP{
		NumRegisters: int(numRegs),
		NumLocals:    int(numLocals),
		Locals:       locals,
		Pool:         pool,
		Code:         codeCopy,
	}

	node.Children = make([]*IREP, numChildren)
	for i := range node.Children {
		child, err := readIrepNode(r)
		if err != nil {
			return nil, err
		}
		node.Children[i] = child
	}
	return node, nil
}
