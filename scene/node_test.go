// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package scene

import "testing"

func TestRootAlwaysZero(t *testing.T) {
	s := New()
	if !s.Alive(Root) {
		t.Fatal("root must exist")
	}
	if s.Parent(Root) != none {
		t.Error("root must have no parent")
	}
}

func TestAddChildFirstLastAfter(t *testing.T) {
	s := New()
	a := s.AddChildLast(Root)
	b := s.AddChildLast(Root)
	c := s.AddChildFirst(Root)
	d := s.AddChildAfter(Root, a)

	var order []int
	s.Children(Root, func(child int) { order = append(order, child) })
	want := []int{c, a, d, b}
	if len(order) != len(want) {
		t.Fatalf("got %v children, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: got %d want %d (%v)", i, order[i], want[i], order)
		}
	}
}

func TestRemoveSubtree(t *testing.T) {
	s := New()
	parent := s.AddChildLast(Root)
	child := s.AddChildLast(parent)
	grandchild := s.AddChildLast(child)

	s.Remove(parent)

	if s.Alive(parent) || s.Alive(child) || s.Alive(grandchild) {
		t.Error("removing a subtree must remove every descendant")
	}
	var remaining []int
	s.Children(Root, func(c int) { remaining = append(remaining, c) })
	if len(remaining) != 0 {
		t.Errorf("root should have no children left, got %v", remaining)
	}
}

func TestFreedIndexIsReused(t *testing.T) {
	s := New()
	a := s.AddChildLast(Root)
	s.Remove(a)
	b := s.AddChildLast(Root)
	if b != a {
		t.Errorf("expected freed index %d to be reused, got %d", a, b)
	}
}

func TestWorldTransformPropagatesThroughParent(t *testing.T) {
	s := New()
	parent := s.AddChildLast(Root)
	child := s.AddChildLast(parent)

	s.SetPosition(parent, 10, 0, 0)
	s.SetPosition(child, 1, 0, 0)

	w := s.World(child)
	if w.Wx != 11 || w.Wy != 0 || w.Wz != 0 {
		t.Errorf("got child world translation (%v,%v,%v), want (11,0,0)", w.Wx, w.Wy, w.Wz)
	}

	// Moving the parent again must be observed on the next World() call
	// without an explicit child update (lazy dirty propagation).
	s.SetPosition(parent, 20, 0, 0)
	w = s.World(child)
	if w.Wx != 21 {
		t.Errorf("got %v after parent moved, want 21", w.Wx)
	}
}
