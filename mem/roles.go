// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package mem

import "sync"

// System owns the process-wide set of arenas with fixed roles: Permanent
// (lives until shutdown), Transient (reset at frame end), Debug (log
// buffers), and a registry of per-worker Scratch arenas. One System is
// created by the engine root at startup and passed down explicitly rather
// than reached through package-level globals.
type System struct {
	permMu    sync.Mutex
	permanent *Arena // append-only via permMu; the only arena shared across threads.
	transient *Arena // reset once per frame by the main thread only.
	debug     *Arena // log/diagnostic scratch, reset on demand.
	scratch   *Registry
}

// NewSystem constructs the engine's memory system with the given block
// sizes for each role.
func NewSystem(permanentBlock, transientBlock, debugBlock, scratchBlock int) *System {
	return &System{
		permanent: NewArena("permanent", permanentBlock),
		transient: NewArena("transient", transientBlock),
		debug:     NewArena("debug", debugBlock),
		scratch:   NewRegistry(scratchBlock),
	}
}

// AllocatePermanent allocates from the append-only Permanent arena. Safe
// for concurrent use; serialized by an internal lock, the only arena
// shared across workers.
func (s *System) AllocatePermanent(size, alignment int) []byte {
	s.permMu.Lock()
	defer s.permMu.Unlock()
	return s.permanent.Allocate(size, alignment)
}

// Transient returns the per-frame arena. Only the main thread may use it;
// no internal locking is done.
func (s *System) Transient() *Arena { return s.transient }

// EndFrame resets the Transient arena, reclaiming everything allocated
// during the frame just finished.
func (s *System) EndFrame() { s.transient.Reset() }

// Debug returns the arena used for log and diagnostic buffers.
func (s *System) Debug() *Arena { return s.debug }

// Scratch returns the per-owner scratch arena registry (see Scratch's doc
// comment for why ownership is keyed explicitly rather than by OS thread).
func (s *System) Scratch() *Registry { return s.scratch }
