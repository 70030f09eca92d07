// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package mem implements the engine's custom memory system: a bump Arena
// with nested savepoints, a coalescing FreeList for long-lived heap
// objects, and the process-wide arena roles (Permanent, Transient, Debug,
// per-worker Scratch).
//
// Go cannot express raw pointer arithmetic safely, so Arena and FreeList
// operate on byte-slice-backed blocks addressed by offset rather than on
// raw memory; the allocation algorithms are the classic ones: bump-and-grow,
// first-fit-and-split, coalesce-on-free.
package mem

import "fmt"

// Save is an opaque marker returned by Arena.Savepoint and consumed by
// Arena.Restore. Savepoints nest and must be restored in LIFO order;
// restoring out of order is a programmer error and is fatal.
type Save struct {
	block  int
	offset int
	depth  int // position in the arena's savepoint stack when taken.
}

// block is one chained allocation unit of an Arena. Arenas grow by
// appending blocks of at least minBlockSize bytes on exhaustion; blocks
// are never individually freed, only reset as a whole by Restore/Reset.
type block struct {
	data   []byte
	offset int
}

// Arena is a linear bump allocator. Allocations are never freed
// individually; the only ways to reclaim space are Restore (back to a
// savepoint) and Reset (back to empty).
type Arena struct {
	name         string
	minBlockSize int
	blocks       []block
	savepoints   int // depth of the open savepoint stack, for LIFO enforcement.
}

// NewArena creates an arena that grows in chunks of at least minBlockSize
// bytes. name is used only for diagnostics (panic messages, Stats).
func NewArena(name string, minBlockSize int) *Arena {
	if minBlockSize <= 0 {
		minBlockSize = 64 * 1024
	}
	a := &Arena{name: name, minBlockSize: minBlockSize}
	a.blocks = append(a.blocks, block{data: make([]byte, minBlockSize)})
	return a
}

func align(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

// Allocate returns a zero-filled byte slice of the given size, aligned to
// alignment within the arena's backing storage. Allocation failure (the
// arena cannot grow, e.g. out of process memory) is fatal.
func (a *Arena) Allocate(size, alignment int) []byte {
	if size <= 0 {
		return nil
	}
	if alignment <= 0 {
		alignment = 1
	}
	last := &a.blocks[len(a.blocks)-1]
	start := align(last.offset, alignment)
	if start+size <= len(last.data) {
		last.offset = start + size
		return last.data[start : start+size]
	}

	// current block exhausted: grow by a new chained block sized to fit
	// both the requested allocation and future bump growth.
	blockSize := a.minBlockSize
	if size+alignment > blockSize {
		blockSize = size + alignment
	}
	a.blocks = append(a.blocks, block{data: make([]byte, blockSize)})
	nb := &a.blocks[len(a.blocks)-1]
	start = align(0, alignment)
	nb.offset = start + size
	return nb.data[start : start+size]
}

// Savepoint captures the arena's current offset so it can later be
// Restored, freeing everything allocated since. Savepoints must be closed
// in LIFO order relative to siblings taken from the same arena.
func (a *Arena) Savepoint() Save {
	a.savepoints++
	last := len(a.blocks) - 1
	return Save{block: last, offset: a.blocks[last].offset, depth: a.savepoints}
}

// Restore pops the arena back to s, which must be the top of its arena's
// savepoint stack. Restoring an out-of-order savepoint is a fatal bug.
func (a *Arena) Restore(s Save) {
	if a.savepoints == 0 {
		panic(fmt.Sprintf("mem: arena %q: Restore called with no open savepoint", a.name))
	}
	if s.depth != a.savepoints {
		panic(fmt.Sprintf("mem: arena %q: out-of-order Restore: savepoint depth %d, expected top-of-stack depth %d", a.name, s.depth, a.savepoints))
	}
	if s.block >= len(a.blocks) {
		panic(fmt.Sprintf("mem: arena %q: Restore given a stale savepoint", a.name))
	}
	// any blocks chained after s.block were allocated entirely within the
	// savepoint's lifetime and are dropped; a real allocator would retain
	// them for reuse, but correctness only requires they stop being handed
	// out, which truncating the block list guarantees.
	a.blocks = a.blocks[:s.block+1]
	a.blocks[s.block].offset = s.offset
	a.savepoints--
}

// Reset discards all allocations, returning the arena to its initial
// single-block state. Used at frame boundaries for the Transient arena.
func (a *Arena) Reset() {
	if a.savepoints != 0 {
		panic(fmt.Sprintf("mem: arena %q: Reset called with %d open savepoint(s)", a.name, a.savepoints))
	}
	first := a.blocks[0].data
	a.blocks = a.blocks[:1]
	a.blocks[0].data = first
	a.blocks[0].offset = 0
}

// Used returns the total bytes currently bumped across all chained blocks.
func (a *Arena) Used() int {
	n := 0
	for i, b := range a.blocks {
		if i == len(a.blocks)-1 {
			n += b.offset
		} else {
			n += len(b.data)
		}
	}
	return n
}
