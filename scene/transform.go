// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package scene

import "github.com/havenforge/engine/math/lin"

// SetEuler sets idx's local rotation from pitch/yaw/roll degrees, deriving
// the quaternion Rot. Composition order is yaw * pitch * roll (Y then X
// then Z), the common camera/actor convention.
func (s *Scene) SetEuler(idx int, pitchDeg, yawDeg, rollDeg float64) {
	t := s.nodes[idx].local
	t.Euler = lin.V3{X: pitchDeg, Y: yawDeg, Z: rollDeg}
	t.Rot = eulerToQuat(pitchDeg, yawDeg, rollDeg)
	s.SetLocal(idx, t)
}

// SetPosition sets idx's local translation.
func (s *Scene) SetPosition(idx int, x, y, z float64) {
	t := s.nodes[idx].local
	t.Position = lin.V3{X: x, Y: y, Z: z}
	s.SetLocal(idx, t)
}

// SetScale sets idx's local scale.
func (s *Scene) SetScale(idx int, x, y, z float64) {
	t := s.nodes[idx].local
	t.Scale = lin.V3{X: x, Y: y, Z: z}
	s.SetLocal(idx, t)
}

// eulerToQuat builds the rotation quaternion for pitch (X), yaw (Y), and
// roll (Z) given in degrees, combined as Ryaw * Rpitch * Rroll.
func eulerToQuat(pitchDeg, yawDeg, rollDeg float64) lin.Q {
	px, py, pz := lin.Rad(pitchDeg), lin.Rad(yawDeg), lin.Rad(rollDeg)

	qx := axisAngleQ(1, 0, 0, px)
	qy := axisAngleQ(0, 1, 0, py)
	qz := axisAngleQ(0, 0, 1, pz)

	result := lin.Q{}
	tmp := lin.Q{}
	result.Mult(&qy, &qx)
	tmp.Mult(&result, &qz)
	return tmp
}

func axisAngleQ(ax, ay, az, angle float64) lin.Q {
	q := lin.Q{}
	q.SetAa(ax, ay, az, angle)
	return q
}

// localMatrix builds t's local transform matrix M = Scale * Rotate *
// Translate, consistent with this package's row-vector convention
// (v' = v * M): a point is scaled, then rotated, then translated.
func localMatrix(t Transform) lin.M4 {
	m := lin.M4{}
	m.SetQ(&t.Rot)
	m.ScaleSM(t.Scale.X, t.Scale.Y, t.Scale.Z)
	m.TranslateMT(t.Position.X, t.Position.Y, t.Position.Z)
	return m
}

// World returns idx's cached world matrix, recomputing it (and any
// ancestor whose own world matrix is stale) first. Dirty bits propagate
// lazily: a node only recomputes when a traversal reaches it, never
// eagerly on mutation.
func (s *Scene) World(idx int) *lin.M4 {
	s.ensureWorld(idx)
	return &s.nodes[idx].world
}

// ensureWorld recomputes idx's world matrix if idx or any ancestor is
// stale. Recomputing a node marks its direct children dirty, so a later
// traversal that starts below idx still observes the change even though
// this one never visited those children.
func (s *Scene) ensureWorld(idx int) {
	n := &s.nodes[idx]
	if n.parent != none {
		s.ensureWorld(n.parent)
	}
	if !n.dirty {
		return
	}
	local := localMatrix(n.local)
	if n.parent == none {
		n.world = local
	} else {
		n.world.Mult(&local, &s.nodes[n.parent].world)
	}
	n.dirty = false
	c := n.firstChild
	for c != none {
		s.nodes[c].dirty = true
		c = s.nodes[c].nextSibling
	}
}
