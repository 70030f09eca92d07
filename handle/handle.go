// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package handle provides the generational handle pool primitive shared by
// every resource table in the engine (job handles, asset resources, GPU
// textures/meshes/materials/shaders/pipelines).
//
// A Handle is a {index, generation} pair. Dereferencing a handle checks the
// generation against the pool slot's current generation; a mismatch means
// the handle is stale and lookup fails rather than returning garbage.
package handle

import (
	"fmt"
	"sync"
)

// Handle addresses a single slot in a Pool. The zero Handle is never
// returned by Acquire and is reserved to mean "no handle".
type Handle struct {
	Index      uint32
	Generation uint32
}

// Valid reports whether h could conceivably address a live slot, i.e. it is
// not the zero value. It does not check against any particular Pool.
func (h Handle) Valid() bool { return h.Generation != 0 }

// String renders a handle for logs and error messages.
func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index, h.Generation)
}

// maxGeneration bounds a slot's generation counter. Once a slot would wrap
// past this value it is permanently retired rather than recycled, so a
// handle from a previous life can never alias a new occupant.
const maxGeneration = ^uint32(0)

// Pool is a vector of slots plus a free list of indices. The vector grows
// on demand; a Pool has no fixed capacity and never refuses an Acquire.
// Every resource table in the engine (C3 resources, C4 GPU objects, job
// handles) is one instance of Pool[T].
//
// Pool is safe for concurrent use; all mutation is serialized by an
// internal mutex, one per table.
//
// Slots are allocated individually on the heap (as *slot[T]) and referenced
// through a slice of pointers: growing the index slice may reallocate that
// slice's backing array, but every already-issued *T keeps pointing at its
// own stable allocation rather than into the resized array.
type Pool[T any] struct {
	mu      sync.Mutex
	slots   []*slot[T]
	free    []uint32
	retired int // slots permanently removed from circulation (generation overflow).
}

type slot[T any] struct {
	payload    T
	generation uint32
	occupied   bool
}

// New returns an empty pool. Capacity grows on demand as Acquire is called;
// callers who know their bound can use Grow to pre-size the backing slice.
func New[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Grow ensures the pool can hold at least n slots without reallocating the
// index slice (the slots themselves are always individually allocated).
func (p *Pool[T]) Grow(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cap(p.slots) < n {
		grown := make([]*slot[T], len(p.slots), n)
		copy(grown, p.slots)
		p.slots = grown
	}
}

// Acquire reserves a slot, bumps its generation, and returns the handle
// addressing it along with a pointer to its zero-valued payload for the
// caller to populate. The returned pointer remains valid for the life of
// the slot, even as the pool grows.
func (p *Pool[T]) Acquire() (Handle, *T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.slots = append(p.slots, &slot[T]{})
		idx = uint32(len(p.slots) - 1)
	}

	s := p.slots[idx]
	s.generation++
	if s.generation == 0 {
		// wrapped past maxGeneration: retire this slot for good rather
		// than reuse it and risk aliasing a handle from a previous life.
		s.generation = maxGeneration
		s.occupied = false
		p.retired++
		p.slots = append(p.slots, &slot[T]{})
		idx = uint32(len(p.slots) - 1)
		s = p.slots[idx]
		s.generation = 1
	}
	s.occupied = true
	var zero T
	s.payload = zero
	return Handle{Index: idx, Generation: s.generation}, &s.payload
}

// Release invalidates h's slot and returns its index to the free list. A
// stale or already-released handle is a silent no-op: callers are not
// required to track whether they already released.
func (p *Pool[T]) Release(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h.Index) >= len(p.slots) {
		return
	}
	s := p.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return
	}
	s.occupied = false
	var zero T
	s.payload = zero
	if s.generation < maxGeneration {
		p.free = append(p.free, h.Index)
	} else {
		p.retired++
	}
	// at maxGeneration the slot stays permanently retired: never re-added
	// to the free list, so Acquire will not hand it out again.
}

// Get returns a pointer to the live payload addressed by h, or nil and
// false if h is stale (wrong generation) or out of range. Callers surface
// the absent case themselves, typically as asset-not-found or a skipped
// draw.
//
// The returned pointer lets a caller mutate the payload in place; Pool
// itself only serializes the slot bookkeeping (occupied/generation/free
// list), not the payload's internals — callers whose payload is mutated
// from multiple goroutines (job records, asset resources) carry their own
// finer-grained lock or atomics for that, layered on top of the pool.
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h.Index) >= len(p.slots) {
		return nil, false
	}
	s := p.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return nil, false
	}
	return &s.payload, true
}

// Valid reports whether h currently addresses a live slot.
func (p *Pool[T]) Valid(h Handle) bool {
	_, ok := p.Get(h)
	return ok
}

// Len returns the number of currently occupied slots.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.slots {
		if p.slots[i].occupied {
			n++
		}
	}
	return n
}

// Retired returns the count of slots permanently removed from circulation
// due to generation overflow. Expected to stay at zero for the lifetime of
// almost every process; a nonzero count is a sign a table is thrashing.
func (p *Pool[T]) Retired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retired
}
