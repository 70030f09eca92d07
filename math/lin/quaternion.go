// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import "math"

// Q is a unit quaternion representing a 3D rotation: axis (X,Y,Z) scaled
// by the half-angle sine, and W the half-angle cosine.
type Q struct {
	X, Y, Z, W float64
}

// Eq reports whether q and r hold identical values.
func (q *Q) Eq(r *Q) bool { return q.X == r.X && q.Y == r.Y && q.Z == r.Z && q.W == r.W }

// Aeq reports whether q and r are equal to within Epsilon per element.
func (q *Q) Aeq(r *Q) bool {
	return Aeq(q.X, r.X) && Aeq(q.Y, r.Y) && Aeq(q.Z, r.Z) && Aeq(q.W, r.W)
}

// SetAa sets q to the rotation of angle radians about axis (ax,ay,az),
// leaving q at identity if the axis has zero length.
func (q *Q) SetAa(ax, ay, az, angle float64) *Q {
	axisLenSqr := ax*ax + ay*ay + az*az
	if axisLenSqr == 0 {
		q.X, q.Y, q.Z, q.W = 0, 0, 0, 1
		return q
	}
	s := math.Sin(angle*0.5) / math.Sqrt(axisLenSqr)
	q.X, q.Y, q.Z, q.W = ax*s, ay*s, az*s, math.Cos(angle*0.5)
	return q
}

// Mult sets q to the composition of rotations r then s (apply r, then
// apply s) and returns q. q may alias r or s.
func (q *Q) Mult(r, s *Q) *Q {
	x := r.W*s.X + r.X*s.W - r.Y*s.Z + r.Z*s.Y
	y := r.W*s.Y + r.X*s.Z + r.Y*s.W - r.Z*s.X
	z := r.W*s.Z - r.X*s.Y + r.Y*s.X + r.Z*s.W
	w := r.W*s.W - r.X*s.X - r.Y*s.Y - r.Z*s.Z
	q.X, q.Y, q.Z, q.W = x, y, z, w
	return q
}
