// Package symbol implements the process-wide (or, in multi-VM embeddings,
// runtime-wide) identifier intern table: Intern(str) -> ID and the inverse
// NameOf(ID) -> str. IDs are small dense integers assigned in insertion
// order, grounded on the class/method-name tables wudi-hey/registry keeps
// for classes and functions, generalized here into a standalone reusable
// component since the spec treats interning as its own concern (symbols are
// plain value types, never reference-counted).
package symbol

import "fmt"

// ID identifies an interned symbol. The zero value is never produced by
// Intern; it is reserved so a zero ID field reliably means "no symbol".
type ID uint32

// DefaultCapacity bounds how many distinct symbols a Table may hold when New
// is given a non-positive capacity. Overflow is a
// hard error per spec §4.2, mirroring mruby/c's fixed-size symbol table on
// bare-metal targets.
const DefaultCapacity = 1 << 16

// ErrCapacity is returned by Intern when the table is full.
type ErrCapacity struct{ Capacity int }

func (e *ErrCapacity) Error() string {
	return fmt.Sprintf("symbol: table exhausted (capacity %d)", e.Capacity)
}

// Table is an insertion-ordered string<->ID intern table.
type Table struct {
	capacity int
	byName   map[string]ID
	byID     []string
}

// New creates a Table bounded at capacity entries. capacity <= 0 selects
// DefaultCapacity.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		capacity: capacity,
		byName:   make(map[string]ID),
		byID:     make([]string, 0, 64),
	}
}

// Intern returns the ID for s, assigning a fresh one on first sight. Two
// calls with byte-identical strings always return the same ID (the
// bijection invariant in spec §8).
func (t *Table) Intern(s string) (ID, error) {
	if id, ok := t.byName[s]; ok {
		return id, nil
	}
	if len(t.byID) >= t.capacity {
		return 0, &ErrCapacity{Capacity: t.capacity}
	}
	id := ID(len(t.byID) + 1) // 0 reserved as "no symbol"
	t.byID = append(t.byID, s)
	t.byName[s] = id
	return id, nil
}

// MustIntern is Intern without the error return, for call sites (native
// method registration, VM bootstrap) that treat capacity overflow as fatal.
func (t *Table) MustIntern(s string) ID {
	id, err := t.Intern(s)
	if err != nil {
		panic(err)
	}
	return id
}

// NameOf returns the string originally interned under id, and false if id
// was never issued by this table.
func (t *Table) NameOf(id ID) (string, bool) {
	if id == 0 || int(id) > len(t.byID) {
		return "", false
	}
	return t.byID[id-1], true
}

// Len reports how many distinct symbols have been interned.
func (t *Table) Len() int { return len(t.byID) }
