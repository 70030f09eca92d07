// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package mem

import "testing"

// TestArenaStack nests savepoints in a 4 KiB arena and checks each restore
// returns the offset to exactly its pre-savepoint value.
func TestArenaStack(t *testing.T) {
	a := NewArena("t", 4096)

	saveA := a.Savepoint()
	a.Allocate(128, 1)
	if got := a.Used(); got != 128 {
		t.Fatalf("after 128B alloc: Used() = %d, want 128", got)
	}

	saveB := a.Savepoint()
	a.Allocate(256, 1)
	if got := a.Used(); got != 384 {
		t.Fatalf("after 256B alloc: Used() = %d, want 384", got)
	}

	a.Restore(saveB)
	if got := a.Used(); got != 128 {
		t.Fatalf("after restore B: Used() = %d, want 128", got)
	}

	a.Restore(saveA)
	if got := a.Used(); got != 0 {
		t.Fatalf("after restore A: Used() = %d, want 0", got)
	}
}

func TestArenaOutOfOrderRestoreAborts(t *testing.T) {
	a := NewArena("t", 4096)
	saveA := a.Savepoint()
	a.Allocate(64, 1)
	_ = a.Savepoint() // saveB opened but never restored first.

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic restoring out-of-order savepoint")
		}
	}()
	a.Restore(saveA)
}

func TestArenaGrowsByChainedBlock(t *testing.T) {
	a := NewArena("t", 64)
	a.Allocate(64, 1)
	a.Allocate(64, 1) // must chain a new block rather than corrupt the first.
	if len(a.blocks) != 2 {
		t.Fatalf("expected arena to grow by a chained block, got %d blocks", len(a.blocks))
	}
}

func TestArenaResetRequiresClosedSavepoints(t *testing.T) {
	a := NewArena("t", 64)
	a.Savepoint()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic resetting with an open savepoint")
		}
	}()
	a.Reset()
}
