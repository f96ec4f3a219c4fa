// Package value implements the VM's tagged-value representation: a closed
// sum type carrying either a scalar payload inline or a shared reference to
// heap storage. This is the Go-native, reference-counted analog of
// wudi-hey/values.Value (which is GC-backed and has no EMPTY tag); here
// every reference-typed variant carries an explicit, opcode-visible
// refcount because the spec requires inc/dec to be observable operations at
// opcode boundaries, not an implicit effect of Go's garbage collector.
package value

import (
	"fmt"
	"math"

	"github.com/embedvm/corevm/symbol"
)

// Tag identifies which variant a Value currently holds.
type Tag uint8

const (
	// EMPTY marks a register slot that currently holds no live value; used
	// only transiently while ENTER reshapes an argument window. It must
	// never escape to a user-visible read.
	EMPTY Tag = iota
	NIL
	FALSE
	TRUE
	FIXNUM
	FLOAT
	SYMBOL
	CLASS
	OBJECT
	PROC
	ARRAY
	STRING
	RANGE
	HASH
	HANDLE
)

func (t Tag) String() string {
	switch t {
	case EMPTY:
		return "EMPTY"
	case NIL:
		return "NIL"
	case FALSE:
		return "FALSE"
	case TRUE:
		return "TRUE"
	case FIXNUM:
		return "FIXNUM"
	case FLOAT:
		return "FLOAT"
	case SYMBOL:
		return "SYMBOL"
	case CLASS:
		return "CLASS"
	case OBJECT:
		return "OBJECT"
	case PROC:
		return "PROC"
	case ARRAY:
		return "ARRAY"
	case STRING:
		return "STRING"
	case RANGE:
		return "RANGE"
	case HASH:
		return "HASH"
	case HANDLE:
		return "HANDLE"
	default:
		return "UNKNOWN"
	}
}

// Ref is the shared, reference-counted heap cell backing every
// reference-typed tag (CLASS, OBJECT, PROC, ARRAY, STRING, RANGE, HASH,
// HANDLE). Data holds the concrete payload (*ArrayObj, *Str, *HashObj, ... —
// some defined by the owning packages to avoid import cycles). release, when
// non-nil, is invoked exactly once when the count drops to zero; String uses
// it to return its backing bytes to a mem.Arena, while Array, Hash, Range
// and Instance use it to release the values they contain (see
// DESIGN.md's note on why Class/Instance/Proc/Hash are plain Go-GC'd
// instead of arena-backed).
type Ref struct {
	count   int32
	Data    interface{}
	release func()
}

// NewRef wraps data in a freshly minted reference with count 1.
func NewRef(data interface{}, release func()) *Ref {
	return &Ref{count: 1, Data: data, release: release}
}

// Retain increments the reference count. Called whenever a Value is copied
// into a second live location (register, ivar slot, array/hash element).
func (r *Ref) Retain() {
	if r != nil {
		r.count++
	}
}

// Release decrements the reference count and invokes the release hook when
// it reaches zero. Panics if the count underflows, which the spec treats as
// an opcode implementation bug (every opcode that replaces a register must
// decrement the old value exactly once).
func (r *Ref) Release() {
	if r == nil {
		return
	}
	r.count--
	if r.count < 0 {
		panic("value: refcount underflow")
	}
	if r.count == 0 && r.release != nil {
		r.release()
	}
}

// Count reports the current reference count, for tests asserting the
// balanced-refcount invariant in spec §8.
func (r *Ref) Count() int32 {
	if r == nil {
		return 0
	}
	return r.count
}

// Value is the VM's tagged-union register/slot contents.
type Value struct {
	Tag Tag
	i   int64     // FIXNUM payload, or SYMBOL id
	f   float64   // FLOAT payload
	ref *Ref      // shared payload for reference-typed tags
}

var (
	vEmpty = Value{Tag: EMPTY}
	vNil   = Value{Tag: NIL}
	vFalse = Value{Tag: FALSE}
	vTrue  = Value{Tag: TRUE}
)

func Empty() Value { return vEmpty }
func Nil() Value   { return vNil }
func False() Value { return vFalse }
func True() Value  { return vTrue }

func Bool(b bool) Value {
	if b {
		return vTrue
	}
	return vFalse
}

func Fixnum(n int64) Value { return Value{Tag: FIXNUM, i: n} }
func Float(f float64) Value { return Value{Tag: FLOAT, f: f} }
func Sym(id symbol.ID) Value { return Value{Tag: SYMBOL, i: int64(id)} }

// FromRef builds a reference-typed Value of the given tag around ref,
// without retaining it — the caller is transferring ownership of the
// ref's initial count of 1.
func FromRef(tag Tag, ref *Ref) Value {
	return Value{Tag: tag, ref: ref}
}

// Int returns the FIXNUM payload; only valid when Tag == FIXNUM.
func (v Value) Int() int64 { return v.i }

// Float64 returns the FLOAT payload; only valid when Tag == FLOAT.
func (v Value) Float64() float64 { return v.f }

// SymbolID returns the SYMBOL payload; only valid when Tag == SYMBOL.
func (v Value) SymbolID() symbol.ID { return symbol.ID(v.i) }

// Ref returns the shared reference cell for reference-typed tags, or nil
// for scalar tags.
func (v Value) Ref() *Ref { return v.ref }

// Retain increments the backing ref's count, if any. Safe to call on
// scalar-tagged values (no-op).
func (v Value) Retain() Value {
	v.ref.Retain()
	return v
}

// Release decrements the backing ref's count, if any, possibly triggering
// its release hook. Safe to call on scalar-tagged values (no-op).
func (v Value) Release() {
	v.ref.Release()
}

// Truthy implements spec §3: FALSE and NIL are falsey, everything else
// (including FIXNUM(0)) is truthy.
func (v Value) Truthy() bool {
	return v.Tag != NIL && v.Tag != FALSE
}

// IsNumeric reports whether v is FIXNUM or FLOAT.
func (v Value) IsNumeric() bool {
	return v.Tag == FIXNUM || v.Tag == FLOAT
}

// AsFloat promotes a numeric value to float64, per the heterogeneous
// comparison/arithmetic promotion rule in spec §3.
func (v Value) AsFloat() float64 {
	switch v.Tag {
	case FIXNUM:
		return float64(v.i)
	case FLOAT:
		return v.f
	default:
		return math.NaN()
	}
}

// GoString renders a compact debug form, used by the print/format component
// as a fallback for tags it has no dedicated verb for.
func (v Value) GoString() string {
	switch v.Tag {
	case EMPTY:
		return "<empty>"
	case NIL:
		return "nil"
	case FALSE:
		return "false"
	case TRUE:
		return "true"
	case FIXNUM:
		return fmt.Sprintf("%d", v.i)
	case FLOAT:
		return fmt.Sprintf("%g", v.f)
	case SYMBOL:
		return fmt.Sprintf(":sym#%d", v.i)
	default:
		return fmt.Sprintf("#<%s>", v.Tag)
	}
}
