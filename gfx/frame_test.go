// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import "testing"

// TestFrameAdvanceRunsPassesInCompiledOrder follows a compiled graph
// through the per-frame loop: each compiled pass must begin and end once,
// in order, and the frame must wait its slot's fence before acquiring a
// swap image.
func TestFrameAdvanceRunsPassesInCompiledOrder(t *testing.T) {
	dev := &fakeDevice{}
	sys := New(dev)

	g := NewFrameGraph()
	g.AddAttachment(Attachment{Name: "color", Format: FormatColor})
	g.AddAttachment(Attachment{Name: "presentable", Presentable: true})
	g.AddPass(Pass{Name: "A", Writes: []Write{{Attachment: "color", Op: OpClear}}})
	g.AddPass(Pass{Name: "B", Reads: []string{"color"}, Writes: []Write{{Attachment: "presentable", Op: OpClear}}})
	compiled, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	fences := [FramesInFlight]Fence{&fakeFence{}, &fakeFence{}}
	frame := NewFrame(sys, compiled, fences)

	if err := frame.Advance(nil); err != nil {
		t.Fatalf("advance: %v", err)
	}

	want := []string{"acquire", "begin:A", "end", "barrier", "begin:B", "end", "submit", "present"}
	if len(dev.calls) != len(want) {
		t.Fatalf("got calls %v, want %v", dev.calls, want)
	}
	for i := range want {
		if dev.calls[i] != want[i] {
			t.Fatalf("got calls %v, want %v", dev.calls, want)
		}
	}

	f0 := fences[0].(*fakeFence)
	if f0.waits != 1 || f0.resets != 1 {
		t.Errorf("got slot-0 fence waits=%d resets=%d, want 1,1", f0.waits, f0.resets)
	}
}

// TestResizeToSameDimensionsIsNoOp: only a genuine size change flags the
// swap-tracking attachments for reallocation.
func TestResizeToSameDimensionsIsNoOp(t *testing.T) {
	sys := New(&fakeDevice{})
	g := NewFrameGraph()
	g.AddAttachment(Attachment{Name: "color", Format: FormatColor, SizeScale: 1, ResizableWithSwap: true})
	g.AddAttachment(Attachment{Name: "lut", Format: FormatColor, SizeScale: 0.25})
	g.AddPass(Pass{Name: "A", Writes: []Write{{Attachment: "lut", Op: OpClear}}})
	g.AddPass(Pass{Name: "B", Reads: []string{"lut"}, Writes: []Write{{Attachment: "color", Op: OpClear}}})
	compiled, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	frame := NewFrame(sys, compiled, [FramesInFlight]Fence{&fakeFence{}, &fakeFence{}})

	realloc := frame.Resize(1280, 720)
	if len(realloc) != 1 || realloc[0] != "color" {
		t.Fatalf("first resize reallocates %v, want [color]", realloc)
	}
	if again := frame.Resize(1280, 720); again != nil {
		t.Fatalf("same-size resize reallocated %v, want nothing", again)
	}
	if grown := frame.Resize(1920, 1080); len(grown) != 1 {
		t.Fatalf("real resize reallocated %v, want [color]", grown)
	}
}
