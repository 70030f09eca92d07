// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import "fmt"

// Op is what a pass does to one of its write attachments on entry.
type Op int

const (
	OpLoad Op = iota
	OpClear
	OpDontCare
	OpResolve
)

// Format is a logical attachment's pixel format. Concrete GPU format
// enums are a backend concern; this package only needs format identity to
// decide whether two attachments can alias the same physical image.
type Format int

const (
	FormatColor Format = iota
	FormatDepth
)

// Attachment is a named logical render target.
type Attachment struct {
	Name              string
	Format            Format
	SizeScale         float64 // relative to the swapchain's current size.
	ResizableWithSwap bool
	SampleCount       int
	Presentable       bool // the final image; at most one per graph.
}

// Write is one of a Pass's write attachments and the Op it's entered with.
type Write struct {
	Attachment string
	Op         Op
	// ResolveFrom names the multisample attachment this Write resolves
	// down from; only meaningful when Op == OpResolve, e.g. writing
	// "color" with ResolveFrom "color-ms".
	ResolveFrom string
}

// Pass is one render-graph node: the attachments it reads, the attachments
// (and entry ops) it writes, and the callback the compiled per-frame loop
// invokes with the current draw list.
type Pass struct {
	Name    string
	Reads   []string
	Writes  []Write
	Execute func(list DrawList)
}

// FrameGraph is the declared set of passes plus their attachments, not yet
// compiled into an executable order.
type FrameGraph struct {
	Attachments map[string]Attachment
	Passes      []Pass
}

// NewFrameGraph returns an empty, uncompiled frame graph.
func NewFrameGraph() *FrameGraph {
	return &FrameGraph{Attachments: map[string]Attachment{}}
}

// AddAttachment declares a logical render target.
func (g *FrameGraph) AddAttachment(a Attachment) { g.Attachments[a.Name] = a }

// AddPass appends a pass declaration.
func (g *FrameGraph) AddPass(p Pass) { g.Passes = append(g.Passes, p) }

// Barrier is a synchronization point the compiled loop inserts between a
// producing pass and a consuming one.
type Barrier struct {
	Attachment string
	// Producer/Consumer describe why the barrier exists; pipeline stage
	// and access masks are inferred from attachment usage by the backend,
	// which owns the concrete GPU API's enums.
	Producer, Consumer string
}

// Resolve is a multisample-to-single-sample resolve the compiled loop
// performs between two adjacent passes.
type Resolve struct {
	From, To string
	After    string // name of the pass producing From.
}

// PhysicalImage is one GPU image backing one or more logical attachments
// whose lifetimes within the compiled order do not overlap. The
// presentable attachment always gets an image of its own: it aliases the
// swap image, never a transient.
type PhysicalImage struct {
	Format            Format
	SizeScale         float64
	SampleCount       int
	ResizableWithSwap bool
	Attachments       []string
}

// Compiled is the frame graph's execution plan: passes in topological
// order, one barrier list per pass boundary, the resolves to perform, and
// the physical images assigned to back the logical attachments.
type Compiled struct {
	Order    []Pass
	Barriers [][]Barrier // Barriers[i] runs after Order[i-1], before Order[i]. Barriers[0] is empty unless Order[0] reads an attachment it also writes.
	Resolves []Resolve

	Images  []PhysicalImage
	ImageOf map[string]int // attachment name -> index into Images.
}

// ResizableAttachments returns the names of attachments flagged to track
// the swapchain's size, in deterministic order.
func (c *Compiled) ResizableAttachments() []string {
	var out []string
	for _, img := range c.Images {
		if img.ResizableWithSwap {
			out = append(out, img.Attachments...)
		}
	}
	return out
}

// Compile topologically sorts g's passes so every writer precedes its
// readers, then derives the barrier and resolve lists the per-frame loop
// needs. It errors on a cycle or a read of an attachment no pass writes.
func (g *FrameGraph) Compile() (*Compiled, error) {
	writerOf := map[string]int{} // attachment -> index into g.Passes of its (last) writer.
	for i, p := range g.Passes {
		for _, w := range p.Writes {
			writerOf[w.Attachment] = i
		}
	}

	indegree := make([]int, len(g.Passes))
	edges := make([][]int, len(g.Passes)) // edges[i] = passes that must come after i.
	addEdge := func(producer string, consumerIdx int) error {
		j, ok := writerOf[producer]
		if !ok {
			return fmt.Errorf("gfx: pass %q depends on attachment %q which no pass writes", g.Passes[consumerIdx].Name, producer)
		}
		if j == consumerIdx {
			return nil
		}
		edges[j] = append(edges[j], consumerIdx)
		indegree[consumerIdx]++
		return nil
	}
	for i, p := range g.Passes {
		for _, r := range p.Reads {
			if err := addEdge(r, i); err != nil {
				return nil, err
			}
		}
		for _, w := range p.Writes {
			if w.Op == OpResolve {
				if err := addEdge(w.ResolveFrom, i); err != nil {
					return nil, err
				}
			}
		}
	}

	var order []int
	var ready []int
	for i := range g.Passes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range edges[n] {
			indegree[m]--
			if indegree[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	if len(order) != len(g.Passes) {
		return nil, fmt.Errorf("gfx: frame graph has a cycle")
	}

	compiled := &Compiled{}
	for _, idx := range order {
		compiled.Order = append(compiled.Order, g.Passes[idx])
	}

	compiled.Barriers = make([][]Barrier, len(compiled.Order))
	for pos, idx := range order {
		p := g.Passes[idx]
		var barriers []Barrier
		for _, r := range p.Reads {
			producerIdx := writerOf[r]
			barriers = append(barriers, Barrier{Attachment: r, Producer: g.Passes[producerIdx].Name, Consumer: p.Name})
		}
		compiled.Barriers[pos] = barriers

		for _, w := range p.Writes {
			if w.Op == OpResolve {
				compiled.Resolves = append(compiled.Resolves, Resolve{From: w.ResolveFrom, To: w.Attachment, After: g.Passes[writerOf[w.ResolveFrom]].Name})
			}
		}
	}

	g.assignImages(compiled)
	return compiled, nil
}

// lifetime is the span of compiled-order positions an attachment is in
// use: from its first write to its last read or resolve.
type lifetime struct {
	first, last int
}

// assignImages packs the graph's logical attachments onto physical
// images: two attachments share an image when their formats and sizing
// match and their lifetimes never overlap, so a deep graph does not hold
// one GPU allocation per intermediate target.
func (g *FrameGraph) assignImages(c *Compiled) {
	spans := map[string]lifetime{}
	use := func(name string, pos int) {
		if lt, ok := spans[name]; ok {
			if pos < lt.first {
				lt.first = pos
			}
			if pos > lt.last {
				lt.last = pos
			}
			spans[name] = lt
			return
		}
		spans[name] = lifetime{first: pos, last: pos}
	}
	var names []string // attachment names in first-use order, for determinism.
	seen := map[string]bool{}
	note := func(name string, pos int) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		use(name, pos)
	}
	for pos, p := range c.Order {
		for _, w := range p.Writes {
			note(w.Attachment, pos)
			if w.Op == OpResolve {
				note(w.ResolveFrom, pos)
			}
		}
		for _, r := range p.Reads {
			note(r, pos)
		}
	}

	c.ImageOf = map[string]int{}
	imageSpans := map[int][]lifetime{}
	for _, name := range names {
		a := g.Attachments[name]
		lt := spans[name]
		assigned := -1
		if !a.Presentable {
			for i, img := range c.Images {
				if img.Format != a.Format || img.SizeScale != a.SizeScale ||
					img.SampleCount != a.SampleCount || img.ResizableWithSwap != a.ResizableWithSwap {
					continue
				}
				if len(img.Attachments) > 0 && g.Attachments[img.Attachments[0]].Presentable {
					continue
				}
				if overlapsAny(lt, imageSpans[i]) {
					continue
				}
				assigned = i
				break
			}
		}
		if assigned == -1 {
			c.Images = append(c.Images, PhysicalImage{
				Format:            a.Format,
				SizeScale:         a.SizeScale,
				SampleCount:       a.SampleCount,
				ResizableWithSwap: a.ResizableWithSwap,
			})
			assigned = len(c.Images) - 1
		}
		img := &c.Images[assigned]
		img.Attachments = append(img.Attachments, name)
		imageSpans[assigned] = append(imageSpans[assigned], lt)
		c.ImageOf[name] = assigned
	}
}

func overlapsAny(lt lifetime, others []lifetime) bool {
	for _, o := range others {
		if lt.first <= o.last && o.first <= lt.last {
			return true
		}
	}
	return false
}
