// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import "fmt"

// FramesInFlight is the number of frames the CPU may be recording or
// submitting ahead of the GPU before it must stall waiting for a fence
// slot to free up.
const FramesInFlight = 2

// Fence is the synchronization primitive the per-frame loop waits on
// before reusing a frame-in-flight slot's resources. A concrete GPU
// backend's real fence type satisfies this; tests use a fake that's
// "signaled" once Wait has been called for it.
type Fence interface {
	Wait()
	Reset()
}

// Frame drives the frame-graph's per-frame loop: wait the slot's fence,
// acquire a swap image, record each compiled pass in order with its
// barriers/resolves, submit, present.
type Frame struct {
	sys      *System
	compiled *Compiled
	fences   [FramesInFlight]Fence
	index    uint64

	swapW, swapH int
}

// NewFrame returns a driver for compiled, using fences (length
// FramesInFlight) for CPU/GPU synchronization.
func NewFrame(sys *System, compiled *Compiled, fences [FramesInFlight]Fence) *Frame {
	return &Frame{sys: sys, compiled: compiled, fences: fences}
}

// Advance runs one iteration of the per-frame loop against list, the
// application's draw entries for this frame.
func (f *Frame) Advance(list DrawList) error {
	slot := f.index % FramesInFlight
	fence := f.fences[slot]
	fence.Wait() // step 1: wait on this slot's frame-in-flight fence.

	recreated, err := f.sys.device.AcquireSwapImage() // step 2.
	if err != nil {
		return fmt.Errorf("gfx: acquire swap image: %w", err)
	}
	_ = recreated // image reallocation after a swapchain rebuild is the backend's job.

	bucketed, err := f.sys.Bucket(list)
	if err != nil {
		return fmt.Errorf("gfx: bucket draw list: %w", err)
	}

	for i, pass := range f.compiled.Order { // step 3.
		for range f.compiled.Barriers[i] {
			f.sys.device.Barrier()
		}
		clear := passHasClear(pass)
		f.sys.device.BeginPass(pass.Name, clear)
		if pass.Execute != nil {
			// the callback owns deciding which of the bucketed entries
			// belong to this pass and issuing Device.Draw for each; it
			// closes over sys.device at pass-declaration time since Pass
			// itself carries no device reference.
			pass.Execute(bucketed)
		}
		f.sys.device.EndPass()
	}

	if err := f.sys.device.Submit(); err != nil { // step 4.
		return fmt.Errorf("gfx: submit: %w", err)
	}
	fence.Reset()

	if err := f.sys.device.Present(); err != nil { // step 5.
		return fmt.Errorf("gfx: present: %w", err)
	}
	f.index++
	return nil
}

// Resize records the swapchain's new backbuffer size and returns the
// attachments that must be reallocated to track it. A resize to the
// current dimensions is a no-op: nothing is returned and no image is
// touched.
func (f *Frame) Resize(w, h int) []string {
	if w == f.swapW && h == f.swapH {
		return nil
	}
	f.swapW, f.swapH = w, h
	return f.compiled.ResizableAttachments()
}

func passHasClear(p Pass) bool {
	for _, w := range p.Writes {
		if w.Op == OpClear {
			return true
		}
	}
	return false
}
