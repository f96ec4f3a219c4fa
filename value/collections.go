package value

import (
	"unsafe"

	"github.com/embedvm/corevm/mem"
)

// Str is the payload behind a STRING-tagged Value. Its bytes live in a
// mem.Arena allocation: a flat byte buffer has no embedded GC pointers, so
// unlike Array/Hash (which hold Values, and therefore Go-heap references)
// it is safe and meaningful to give the custom allocator real ownership of
// the storage. Releasing the owning Ref returns these bytes to the arena.
type Str struct {
	arena *mem.Arena
	buf   []byte
}

// NewString copies s into a fresh arena allocation and wraps it in a
// refcounted STRING Value with count 1.
func NewString(a *mem.Arena, vmID int32, s string) Value {
	buf := a.Alloc(len(s), vmID)
	if buf == nil && len(s) > 0 {
		// Arena exhausted: degrade to a detached (non-arena) Go buffer
		// rather than fail outright. Arena.Free ignores a buffer it did not
		// hand out, so releasing such a string leaves the arena unchanged.
		buf = make([]byte, len(s))
	}
	copy(buf, s)
	str := &Str{arena: a, buf: buf}
	ref := NewRef(str, func() {
		if str.arena != nil {
			str.arena.Free(str.buf)
		}
	})
	return FromRef(STRING, ref)
}

// Bytes returns the string's backing bytes (read-only view).
func (s *Str) Bytes() []byte { return s.buf }

// Go returns the string's contents as a Go string (one copy).
func (s *Str) Go() string { return string(s.buf) }

// Len returns the byte length.
func (s *Str) Len() int { return len(s.buf) }

// StrOf extracts the *Str payload from a STRING-tagged Value. Panics if v
// is not a STRING; callers are expected to check Tag first, mirroring the
// opcode decoder's "well-defined tag" invariant.
func StrOf(v Value) *Str {
	return v.ref.Data.(*Str)
}

// ArrayObj is the payload behind an ARRAY-tagged Value. Elements are plain
// Go Values (graph-shaped, GC-managed) rather than arena bytes — see
// DESIGN.md's note on why only flat byte payloads are arena-backed.
type ArrayObj struct {
	Elems []Value
}

// NewArray wraps elems (taking ownership; callers must not mutate the
// slice afterward without going through the returned Value) in a
// refcounted ARRAY Value. Releasing it releases every contained element.
func NewArray(elems []Value) Value {
	arr := &ArrayObj{Elems: elems}
	ref := NewRef(arr, func() {
		for _, e := range arr.Elems {
			e.Release()
		}
	})
	return FromRef(ARRAY, ref)
}

func ArrayOf(v Value) *ArrayObj {
	return v.ref.Data.(*ArrayObj)
}

// HashObj is the payload behind a HASH-tagged Value. Backed by a Go map
// keyed on a comparable projection of Value (see hashKey).
type HashObj struct {
	entries map[hashKey]hashEntry
	order   []hashKey // insertion order, for deterministic iteration
}

type hashEntry struct {
	key Value
	val Value
}

// hashKey is a comparable projection of a Value suitable for use as a Go
// map key. Only scalar tags and interned symbols/strings are supported as
// hash keys; anything else falls back to the Ref's pointer identity.
type hashKey struct {
	tag Tag
	i   int64
	f   float64
	s   string
}

func keyOf(v Value) hashKey {
	switch v.Tag {
	case STRING:
		return hashKey{tag: STRING, s: StrOf(v).Go()}
	case FIXNUM, SYMBOL:
		return hashKey{tag: v.Tag, i: v.i}
	case FLOAT:
		return hashKey{tag: FLOAT, f: v.f}
	default:
		return hashKey{tag: v.Tag, i: int64(ptrOf(v))}
	}
}

func ptrOf(v Value) uintptr {
	if v.ref == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(v.ref))
}

func NewHash() Value {
	h := &HashObj{entries: make(map[hashKey]hashEntry)}
	ref := NewRef(h, func() {
		for _, e := range h.entries {
			e.key.Release()
			e.val.Release()
		}
	})
	return FromRef(HASH, ref)
}

func HashOf(v Value) *HashObj {
	return v.ref.Data.(*HashObj)
}

// Set stores key->val, retaining both. Overwrites and releases any prior
// value under the same key.
func (h *HashObj) Set(key, val Value) {
	k := keyOf(key)
	if old, ok := h.entries[k]; ok {
		old.key.Release()
		old.val.Release()
	} else {
		h.order = append(h.order, k)
	}
	h.entries[k] = hashEntry{key: key.Retain(), val: val.Retain()}
}

// Get returns the stored value for key and whether it was present.
func (h *HashObj) Get(key Value) (Value, bool) {
	e, ok := h.entries[keyOf(key)]
	return e.val, ok
}

// Len reports the number of entries.
func (h *HashObj) Len() int { return len(h.entries) }

// Each calls fn for every entry in insertion order.
func (h *HashObj) Each(fn func(key, val Value)) {
	for _, k := range h.order {
		if e, ok := h.entries[k]; ok {
			fn(e.key, e.val)
		}
	}
}

// RangeObj is the payload behind a RANGE-tagged Value.
type RangeObj struct {
	Low, High Value
	Exclusive bool
}

func NewRange(low, high Value, exclusive bool) Value {
	r := &RangeObj{Low: low.Retain(), High: high.Retain(), Exclusive: exclusive}
	ref := NewRef(r, func() {
		r.Low.Release()
		r.High.Release()
	})
	return FromRef(RANGE, ref)
}

func RangeOf(v Value) *RangeObj {
	return v.ref.Data.(*RangeObj)
}
