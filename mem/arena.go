// Package mem implements the first-fit byte arena that backs the byte
// payloads behind String values; register files, bytecode buffers and
// Array element storage are ordinary Go slices and are not allocated from
// it. The allocator is a single-threaded first-fit free list over
// one contiguous []byte, grounded on the mruby/c allocator described in
// original_source/service/src/mrubyc/src/alloc.h: alloc() is a first-fit
// scan that splits the fitting block, free() marks a block free and sweeps
// once forward coalescing adjacent free neighbors, and allocations may
// optionally be tagged with an owning VM-id so free_all(vm) can reclaim
// every block belonging to one task without touching the others.
package mem

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/edsrzf/mmap-go"
)

const headerSize = 32 // conservative header overhead accounted for in split decisions

// block is the bookkeeping header prefixed to every region of the arena,
// live or free. size is the payload size in bytes, excluding the header.
type block struct {
	offset int  // byte offset of payload within the arena
	size   int  // payload size in bytes
	free   bool // true when this block is on the free list
	noFree bool // true for raw_alloc_no_free blocks: never coalesced or swept
	vmID   int32
}

// Arena is a fixed-size contiguous byte pool with a linked list of blocks
// threaded through an auxiliary slice (not stored inline in the backing
// bytes, since Go slices of live Go values must stay GC-visible and the
// backing store itself may be an mmap'd region with no Go pointers in it).
type Arena struct {
	mu     sync.Mutex
	store  []byte
	mapped mmap.MMap // non-nil when the backing store came from mmap.Map
	blocks []*block  // ordered by offset, contiguous coverage of [0,len(store))
}

// NewArena allocates a plain heap-backed arena of the given size.
func NewArena(size int) *Arena {
	if size <= 0 {
		panic("mem: arena size must be positive")
	}
	a := &Arena{store: make([]byte, size)}
	a.blocks = []*block{{offset: 0, size: size, free: true}}
	return a
}

// NewMappedArena backs the arena with an anonymous memory-mapped region via
// github.com/edsrzf/mmap-go, the same mechanism the pack's node-tooling
// repositories use for page-aligned buffers. If the platform cannot provide
// an anonymous mapping it returns the error; it does not fall back to a
// heap arena.
func NewMappedArena(size int) (*Arena, error) {
	m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("mem: mmap arena: %w", err)
	}
	a := &Arena{store: []byte(m), mapped: m}
	a.blocks = []*block{{offset: 0, size: size, free: true}}
	return a, nil
}

// Close unmaps a memory-mapped arena. No-op for heap-backed arenas.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mapped != nil {
		err := a.mapped.Unmap()
		a.mapped = nil
		return err
	}
	return nil
}

// Size returns the total arena capacity in bytes.
func (a *Arena) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.store)
}

// Alloc returns a slice view of n freshly allocated bytes owned by vmID, or
// nil if no free block is large enough. Mirrors mrbc_alloc: first-fit scan,
// split the remainder when it is large enough to host another header.
func (a *Arena) Alloc(n int, vmID int32) []byte {
	if n <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, b := range a.blocks {
		if !b.free || b.size < n {
			continue
		}
		if b.size-n > headerSize {
			newBlock := &block{offset: b.offset + n, size: b.size - n, free: true}
			b.size = n
			rest := append([]*block{newBlock}, a.blocks[i+1:]...)
			a.blocks = append(a.blocks[:i+1], rest...)
		}
		b.free = false
		b.vmID = vmID
		return a.store[b.offset : b.offset+b.size : b.offset+b.size]
	}
	return nil
}

// RawAllocNoFree allocates a block that is excluded from Free/FreeAll
// accounting — for objects that must outlive the VM, such as statically
// installed native methods (mrbc_raw_alloc_no_free).
func (a *Arena) RawAllocNoFree(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, b := range a.blocks {
		if !b.free || b.size < n {
			continue
		}
		if b.size-n > headerSize {
			newBlock := &block{offset: b.offset + n, size: b.size - n, free: true}
			b.size = n
			rest := append([]*block{newBlock}, a.blocks[i+1:]...)
			a.blocks = append(a.blocks[:i+1], rest...)
		}
		b.free = false
		b.noFree = true
		return a.store[b.offset : b.offset+b.size : b.offset+b.size]
	}
	return nil
}

// Free releases the block backing p, then sweeps once forward merging
// adjacent free blocks. p must be a slice previously returned by Alloc; it
// is a no-op (not a fault) if p is nil or was allocated via
// RawAllocNoFree — matching the source's raw_alloc_no_free contract that
// such blocks are excluded from sweep accounting.
func (a *Arena) Free(p []byte) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	off := a.offsetOf(p)
	if off < 0 {
		return
	}
	for _, b := range a.blocks {
		if b.offset == off && !b.noFree {
			b.free = true
			b.vmID = 0
			break
		}
	}
	a.coalesce()
}

// FreeAll releases every block tagged with vmID, required when the
// embedding host runs multiple VMs over one shared arena (spec: VM-id
// tagging). Idempotent: calling it twice, or for a VM-id with no live
// allocations, is not an error.
func (a *Arena) FreeAll(vmID int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range a.blocks {
		if !b.free && !b.noFree && b.vmID == vmID {
			b.free = true
			b.vmID = 0
		}
	}
	a.coalesce()
}

// coalesce sweeps the block list once, merging adjacent free blocks. Caller
// must hold a.mu.
func (a *Arena) coalesce() {
	out := a.blocks[:0]
	for _, b := range a.blocks {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.free && b.free {
				prev.size += b.size
				continue
			}
		}
		out = append(out, b)
	}
	a.blocks = out
}

func (a *Arena) offsetOf(p []byte) int {
	if len(p) == 0 {
		return -1
	}
	start := &p[0]
	for i := range a.store {
		if &a.store[i] == start {
			return i
		}
	}
	return -1
}

// Realloc resizes the allocation backing p to n bytes, copying the smaller
// of the old/new sizes. If p is nil this behaves like Alloc.
func (a *Arena) Realloc(p []byte, n int, vmID int32) []byte {
	if p == nil {
		return a.Alloc(n, vmID)
	}
	a.mu.Lock()
	off := a.offsetOf(p)
	var cur *block
	for _, b := range a.blocks {
		if b.offset == off {
			cur = b
			break
		}
	}
	a.mu.Unlock()
	if cur == nil {
		return a.Alloc(n, vmID)
	}
	if n <= cur.size {
		return p[:n:n]
	}
	np := a.Alloc(n, vmID)
	if np == nil {
		return nil
	}
	copy(np, p)
	a.Free(p)
	return np
}

// Stats mirrors mrbc_alloc_statistics: total arena size, bytes in use,
// bytes free, and the number of free-list fragments.
type Stats struct {
	Total         int
	Used          int
	Free          int
	Fragmentation int
}

// Stats reports current allocator occupancy.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s Stats
	s.Total = len(a.store)
	for _, b := range a.blocks {
		if b.free {
			s.Free += b.size
			s.Fragmentation++
		} else {
			s.Used += b.size
		}
	}
	return s
}

// String renders Stats using humanized byte counts for diagnostics output
// (the Go-native analog of mrbc_alloc_print_memory_pool).
func (s Stats) String() string {
	return fmt.Sprintf("total=%s used=%s free=%s fragments=%d",
		humanize.IBytes(uint64(s.Total)), humanize.IBytes(uint64(s.Used)),
		humanize.IBytes(uint64(s.Free)), s.Fragmentation)
}
