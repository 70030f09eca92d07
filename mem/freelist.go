// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package mem

import (
	"fmt"
	"sort"
	"sync"
)

// FreeList is a coalescing free-block allocator for long-lived heap
// objects — used in this engine as the job-parameters heap. Mutation is
// serialized by an internal mutex so the allocator can be shared across
// job-producing and job-consuming goroutines.
//
// Each live allocation is represented as a liveAlloc tracked by address
// (offset into the backing arena); FreeList never returns raw memory, it
// hands out opaque Ptr tokens so Go's garbage collector never has to be
// told to distrust a byte slice still referenced elsewhere.
type FreeList struct {
	mu     sync.Mutex
	back   []byte
	free   []freeRange // ordered by offset, ascending; no two entries touch.
	live   map[Ptr]liveAlloc
	nextID uint64
}

// Ptr is an opaque handle to a FreeList allocation. The zero Ptr is never
// valid.
type Ptr uint64

type freeRange struct {
	offset, size int
}

type liveAlloc struct {
	offset, size, alignOffset int
}

// NewFreeList creates a free-list allocator over a backing arena of size
// bytes, matching the original's "free list carved out of an arena" usage.
func NewFreeList(size int) *FreeList {
	if size <= 0 {
		size = 1 << 20
	}
	return &FreeList{
		back: make([]byte, size),
		free: []freeRange{{offset: 0, size: size}},
		live: map[Ptr]liveAlloc{},
	}
}

// headerSize models the {payload size, alignment offset} prefix header
// every free-list allocation carries.
const headerSize = 16

// Allocate finds the first free block that fits header+payload+alignment,
// splitting the remainder back into the free list if it is large enough
// to be useful on its own.
func (f *FreeList) Allocate(size, alignment int) Ptr {
	if alignment <= 0 {
		alignment = 1
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, r := range f.free {
		start := align(r.offset+headerSize, alignment)
		alignOffset := start - (r.offset + headerSize)
		need := (start - r.offset) + size
		if need > r.size {
			continue
		}
		remaining := r.size - need
		f.free = append(f.free[:i], f.free[i+1:]...)
		if remaining >= headerSize {
			f.insertFree(freeRange{offset: r.offset + need, size: remaining})
		}
		f.nextID++
		id := Ptr(f.nextID)
		f.live[id] = liveAlloc{offset: r.offset, size: need, alignOffset: alignOffset}
		return id
	}
	panic(fmt.Sprintf("mem: FreeList exhausted requesting %d bytes aligned to %d", size, alignment))
}

// insertFree inserts r into the free list in address order and coalesces
// it with any directly adjacent neighbors.
func (f *FreeList) insertFree(r freeRange) {
	i := sort.Search(len(f.free), func(i int) bool { return f.free[i].offset >= r.offset })
	f.free = append(f.free, freeRange{})
	copy(f.free[i+1:], f.free[i:])
	f.free[i] = r

	// coalesce with the following neighbor.
	if i+1 < len(f.free) && f.free[i].offset+f.free[i].size == f.free[i+1].offset {
		f.free[i].size += f.free[i+1].size
		f.free = append(f.free[:i+1], f.free[i+2:]...)
	}
	// coalesce with the preceding neighbor.
	if i > 0 && f.free[i-1].offset+f.free[i-1].size == f.free[i].offset {
		f.free[i-1].size += f.free[i].size
		f.free = append(f.free[:i], f.free[i+1:]...)
	}
}

// Deallocate returns p's block to the free list, coalescing with adjacent
// free neighbors.
func (f *FreeList) Deallocate(p Ptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.live[p]
	if !ok {
		return // already freed: tolerate, matches handle-pool double-release tolerance.
	}
	delete(f.live, p)
	f.insertFree(freeRange{offset: a.offset, size: a.size})
}

// Reallocate grows or shrinks p's allocation, special-casing growth into
// an immediately adjacent free block when present.
func (f *FreeList) Reallocate(p Ptr, newSize, alignment int) Ptr {
	f.mu.Lock()
	a, ok := f.live[p]
	f.mu.Unlock()
	if !ok {
		return f.Allocate(newSize, alignment)
	}

	payloadCap := a.size - headerSize - a.alignOffset
	if newSize <= payloadCap {
		return p // shrinking in place: header bookkeeping is unaffected.
	}

	f.mu.Lock()
	for i, r := range f.free {
		if r.offset == a.offset+a.size {
			extra := newSize - payloadCap
			if r.size >= extra {
				f.free = append(f.free[:i], f.free[i+1:]...)
				if r.size > extra {
					f.insertFree(freeRange{offset: r.offset + extra, size: r.size - extra})
				}
				a.size += extra
				f.live[p] = a
				f.mu.Unlock()
				return p
			}
			break
		}
	}
	f.mu.Unlock()

	newPtr := f.Allocate(newSize, alignment)
	copy(f.Bytes(newPtr), f.Bytes(p)[:min(payloadCap, newSize)])
	f.Deallocate(p)
	return newPtr
}

// Bytes returns the payload slice addressed by p.
func (f *FreeList) Bytes(p Ptr) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.live[p]
	if !ok {
		return nil
	}
	start := a.offset + headerSize + a.alignOffset
	end := a.offset + a.size
	return f.back[start:end]
}

// FreeBlockSizes returns the sizes of every currently free block, ordered
// by address, for tests asserting coalescing behavior.
func (f *FreeList) FreeBlockSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.free))
	for i, r := range f.free {
		sizes[i] = r.size
	}
	return sizes
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
