// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import "testing"

// TestCompileOrdersPassesAndInsertsResolve: pass A writes depth+color-ms,
// pass B resolves color-ms→color and reads depth, pass C reads color and
// writes presentable. Compile must produce the order A,B,C with a resolve
// recorded between A and B.
func TestCompileOrdersPassesAndInsertsResolve(t *testing.T) {
	g := NewFrameGraph()
	g.AddAttachment(Attachment{Name: "depth", Format: FormatDepth})
	g.AddAttachment(Attachment{Name: "color-ms", Format: FormatColor, SampleCount: 4})
	g.AddAttachment(Attachment{Name: "color", Format: FormatColor})
	g.AddAttachment(Attachment{Name: "presentable", Format: FormatColor, Presentable: true})

	g.AddPass(Pass{
		Name: "A",
		Writes: []Write{
			{Attachment: "depth", Op: OpClear},
			{Attachment: "color-ms", Op: OpClear},
		},
	})
	g.AddPass(Pass{
		Name:  "B",
		Reads: []string{"depth"},
		Writes: []Write{
			{Attachment: "color", Op: OpResolve, ResolveFrom: "color-ms"},
		},
	})
	g.AddPass(Pass{
		Name:  "C",
		Reads: []string{"color"},
		Writes: []Write{
			{Attachment: "presentable", Op: OpClear},
		},
	})

	compiled, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(compiled.Order) != 3 {
		t.Fatalf("got %d passes, want 3", len(compiled.Order))
	}
	var names []string
	for _, p := range compiled.Order {
		names = append(names, p.Name)
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got order %v, want %v", names, want)
		}
	}

	if len(compiled.Resolves) != 1 {
		t.Fatalf("got %d resolves, want 1", len(compiled.Resolves))
	}
	r := compiled.Resolves[0]
	if r.From != "color-ms" || r.To != "color" || r.After != "A" {
		t.Errorf("got resolve %+v, want From=color-ms To=color After=A", r)
	}
}

// TestCompileAliasesNonOverlappingAttachments: in A→B→C, B reads A's
// "ping" and writes "pong" for C, so both lifetimes include B and the two
// must not share a physical image; the presentable "out" gets its own.
func TestCompileAliasesNonOverlappingAttachments(t *testing.T) {
	g := NewFrameGraph()
	g.AddAttachment(Attachment{Name: "ping", Format: FormatColor, SizeScale: 1})
	g.AddAttachment(Attachment{Name: "pong", Format: FormatColor, SizeScale: 1})
	g.AddAttachment(Attachment{Name: "out", Format: FormatColor, SizeScale: 1, Presentable: true})

	g.AddPass(Pass{Name: "A", Writes: []Write{{Attachment: "ping", Op: OpClear}}})
	g.AddPass(Pass{Name: "B", Reads: []string{"ping"}, Writes: []Write{{Attachment: "pong", Op: OpClear}}})
	g.AddPass(Pass{Name: "C", Reads: []string{"pong"}, Writes: []Write{{Attachment: "out", Op: OpClear}}})

	compiled, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if compiled.ImageOf["ping"] == compiled.ImageOf["pong"] {
		t.Fatalf("ping and pong overlap in pass B (write after read in the same pass) and must not alias")
	}
	if compiled.ImageOf["out"] == compiled.ImageOf["ping"] || compiled.ImageOf["out"] == compiled.ImageOf["pong"] {
		t.Fatalf("the presentable attachment must have its own image")
	}

	// a three-pass chain where the first target is dead by the time
	// the third is created does alias.
	g2 := NewFrameGraph()
	g2.AddAttachment(Attachment{Name: "t0", Format: FormatColor, SizeScale: 1})
	g2.AddAttachment(Attachment{Name: "t1", Format: FormatColor, SizeScale: 1})
	g2.AddAttachment(Attachment{Name: "t2", Format: FormatColor, SizeScale: 1})
	g2.AddPass(Pass{Name: "P0", Writes: []Write{{Attachment: "t0", Op: OpClear}}})
	g2.AddPass(Pass{Name: "P1", Reads: []string{"t0"}, Writes: []Write{{Attachment: "t1", Op: OpClear}}})
	g2.AddPass(Pass{Name: "P2", Reads: []string{"t1"}, Writes: []Write{{Attachment: "t2", Op: OpClear}}})
	c2, err := g2.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if c2.ImageOf["t0"] != c2.ImageOf["t2"] {
		t.Fatalf("t0 (dead after P1) and t2 (born in P2) should share an image, got %d and %d",
			c2.ImageOf["t0"], c2.ImageOf["t2"])
	}
	if len(c2.Images) != 2 {
		t.Fatalf("got %d physical images, want 2", len(c2.Images))
	}
}

func TestCompileDetectsCycle(t *testing.T) {
	g := NewFrameGraph()
	g.AddPass(Pass{Name: "A", Reads: []string{"b"}, Writes: []Write{{Attachment: "a", Op: OpClear}}})
	g.AddPass(Pass{Name: "B", Reads: []string{"a"}, Writes: []Write{{Attachment: "b", Op: OpClear}}})
	if _, err := g.Compile(); err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
}

func TestCompileRejectsDanglingRead(t *testing.T) {
	g := NewFrameGraph()
	g.AddPass(Pass{Name: "A", Reads: []string{"nope"}})
	if _, err := g.Compile(); err == nil {
		t.Fatal("expected an unwritten-attachment error, got nil")
	}
}
