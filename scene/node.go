// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package scene implements the engine's scene model: a flat, indexed
// arena of nodes linked by parent/first-child/next-sibling indices with -1
// sentinels, rather than pointers or a recursive tree type, so there are
// no cyclic references to manage.
//
// World transforms are cached per node and recomputed lazily: a dirty bit
// set on a node propagates to its subtree only when that subtree is next
// traversed, rather than being pushed eagerly on every mutation.
package scene

import "github.com/havenforge/engine/math/lin"

// none is the sentinel index meaning "no such node" in parent/child/
// sibling links.
const none = -1

// Root is the index of the scene's root node, which always exists and is
// never removed.
const Root = 0

// AssetRef identifies a mesh, texture, or other on-disk asset a node
// references, without the scene package depending on the asset package
// directly (it is just an opaque identifier here).
type AssetRef uint64

// Light describes a point/directional light carried by a node. Only the
// fields a shader's lighting uniforms need are kept; colour management and
// shadow casting are out of scope.
type Light struct {
	Color     lin.V3
	Intensity float64
	Range     float64 // 0 means directional (infinite range).
}

// Camera describes a perspective camera carried by a node.
type Camera struct {
	FovDegrees float64
	Near, Far  float64
}

// Transform is a node's local position/orientation/scale. Euler holds the
// authored rotation in degrees (pitch, yaw, roll); Rot is derived from it
// by SetEuler and is what World() actually composes with.
type Transform struct {
	Position lin.V3
	Euler    lin.V3 // degrees: X=pitch, Y=yaw, Z=roll.
	Scale    lin.V3
	Rot      lin.Q
}

// identityTransform is the zero value a newly allocated node starts with:
// no translation, no rotation, unit scale.
func identityTransform() Transform {
	t := Transform{Scale: lin.V3{X: 1, Y: 1, Z: 1}}
	t.Rot.SetAa(0, 0, 1, 0)
	return t
}

// node is one slot in the scene's flat array. Index 0 is always the root.
type node struct {
	alive bool

	parent      int
	firstChild  int
	nextSibling int
	prevSibling int

	local Transform
	world lin.M4
	dirty bool

	mesh      AssetRef
	material  AssetRef
	hasLight  bool
	light     Light
	hasCamera bool
	camera    Camera
}

// Scene owns the flat node array, the free list of removed slots, and the
// root's fixed index-0 identity.
type Scene struct {
	nodes []node
	free  []int
}

// New creates a scene containing only the root node at index 0.
func New() *Scene {
	s := &Scene{}
	s.nodes = append(s.nodes, node{
		alive:       true,
		parent:      none,
		firstChild:  none,
		nextSibling: none,
		prevSibling: none,
		local:       identityTransform(),
		dirty:       true,
	})
	return s
}

// alloc returns a live slot index, reusing a freed one where possible.
func (s *Scene) alloc() int {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.nodes[idx] = node{alive: true, parent: none, firstChild: none, nextSibling: none, prevSibling: none, local: identityTransform(), dirty: true}
		return idx
	}
	s.nodes = append(s.nodes, node{alive: true, parent: none, firstChild: none, nextSibling: none, prevSibling: none, local: identityTransform(), dirty: true})
	return len(s.nodes) - 1
}

// Alive reports whether idx currently addresses a live node.
func (s *Scene) Alive(idx int) bool {
	return idx >= 0 && idx < len(s.nodes) && s.nodes[idx].alive
}

// AddChildFirst creates a new node as parent's first child and returns its
// index. O(1) linked-list splice.
func (s *Scene) AddChildFirst(parent int) int {
	child := s.alloc()
	s.nodes[child].parent = parent
	oldFirst := s.nodes[parent].firstChild
	s.nodes[child].nextSibling = oldFirst
	if oldFirst != none {
		s.nodes[oldFirst].prevSibling = child
	}
	s.nodes[parent].firstChild = child
	return child
}

// AddChildLast creates a new node as parent's last child and returns its
// index.
func (s *Scene) AddChildLast(parent int) int {
	child := s.alloc()
	s.nodes[child].parent = parent
	last := s.lastChild(parent)
	if last == none {
		s.nodes[parent].firstChild = child
		return child
	}
	s.nodes[last].nextSibling = child
	s.nodes[child].prevSibling = last
	return child
}

// AddChildAfter creates a new node as sibling's next sibling and returns
// its index. sibling must already be a child of parent.
func (s *Scene) AddChildAfter(parent, sibling int) int {
	child := s.alloc()
	s.nodes[child].parent = parent
	next := s.nodes[sibling].nextSibling
	s.nodes[sibling].nextSibling = child
	s.nodes[child].prevSibling = sibling
	s.nodes[child].nextSibling = next
	if next != none {
		s.nodes[next].prevSibling = child
	}
	return child
}

func (s *Scene) lastChild(parent int) int {
	c := s.nodes[parent].firstChild
	if c == none {
		return none
	}
	for s.nodes[c].nextSibling != none {
		c = s.nodes[c].nextSibling
	}
	return c
}

// Remove deletes idx and its entire subtree, splicing idx out of its
// parent's child list and returning every removed index to the free list.
func (s *Scene) Remove(idx int) {
	if idx == Root || !s.Alive(idx) {
		return // the root is never removed.
	}
	n := &s.nodes[idx]
	if n.prevSibling != none {
		s.nodes[n.prevSibling].nextSibling = n.nextSibling
	} else {
		s.nodes[n.parent].firstChild = n.nextSibling
	}
	if n.nextSibling != none {
		s.nodes[n.nextSibling].prevSibling = n.prevSibling
	}
	s.removeSubtree(idx)
}

// removeSubtree frees idx and, recursively, every descendant, without
// touching sibling links outside the subtree (those were already fixed up
// by the caller, or are themselves being freed).
func (s *Scene) removeSubtree(idx int) {
	child := s.nodes[idx].firstChild
	for child != none {
		next := s.nodes[child].nextSibling
		s.removeSubtree(child)
		child = next
	}
	s.nodes[idx].alive = false
	s.free = append(s.free, idx)
}

// SetLocal replaces idx's local transform and marks it (and, lazily, its
// subtree) dirty for world-matrix recomputation.
func (s *Scene) SetLocal(idx int, t Transform) {
	s.nodes[idx].local = t
	s.nodes[idx].dirty = true
}

// Local returns idx's local transform.
func (s *Scene) Local(idx int) Transform { return s.nodes[idx].local }

// SetMesh attaches a mesh asset reference to idx.
func (s *Scene) SetMesh(idx int, ref AssetRef) { s.nodes[idx].mesh = ref }

// Mesh returns idx's mesh asset reference, or the zero AssetRef if none.
func (s *Scene) Mesh(idx int) AssetRef { return s.nodes[idx].mesh }

// SetMaterial attaches a material asset reference to idx, overriding
// whatever material the node's mesh would otherwise draw with.
func (s *Scene) SetMaterial(idx int, ref AssetRef) { s.nodes[idx].material = ref }

// Material returns idx's material asset reference, or the zero AssetRef
// if none.
func (s *Scene) Material(idx int) AssetRef { return s.nodes[idx].material }

// SetLight attaches a light to idx.
func (s *Scene) SetLight(idx int, l Light) {
	s.nodes[idx].light = l
	s.nodes[idx].hasLight = true
}

// Light returns idx's light and whether one is attached.
func (s *Scene) Light(idx int) (Light, bool) { return s.nodes[idx].light, s.nodes[idx].hasLight }

// SetCamera attaches a camera to idx.
func (s *Scene) SetCamera(idx int, c Camera) {
	s.nodes[idx].camera = c
	s.nodes[idx].hasCamera = true
}

// Camera returns idx's camera and whether one is attached.
func (s *Scene) Camera(idx int) (Camera, bool) { return s.nodes[idx].camera, s.nodes[idx].hasCamera }

// Children calls visit once for each direct child of parent, in sibling
// order.
func (s *Scene) Children(parent int, visit func(child int)) {
	c := s.nodes[parent].firstChild
	for c != none {
		visit(c)
		c = s.nodes[c].nextSibling
	}
}

// Parent returns idx's parent index, or none if idx is the root.
func (s *Scene) Parent(idx int) int { return s.nodes[idx].parent }
