// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import "math"

// V3 is a 3 element vector, used for both points and directions.
type V3 struct {
	X, Y, Z float64
}

// Eq reports whether v and a hold identical values.
func (v *V3) Eq(a *V3) bool { return v.X == a.X && v.Y == a.Y && v.Z == a.Z }

// Aeq reports whether v and a are equal to within Epsilon per element.
func (v *V3) Aeq(a *V3) bool { return Aeq(v.X, a.X) && Aeq(v.Y, a.Y) && Aeq(v.Z, a.Z) }

// SetS sets v's elements and returns v.
func (v *V3) SetS(x, y, z float64) *V3 {
	v.X, v.Y, v.Z = x, y, z
	return v
}

// Add sets v to a+b and returns v. v may alias a or b.
func (v *V3) Add(a, b *V3) *V3 {
	v.X, v.Y, v.Z = a.X+b.X, a.Y+b.Y, a.Z+b.Z
	return v
}

// Sub sets v to a-b and returns v. v may alias a or b.
func (v *V3) Sub(a, b *V3) *V3 {
	v.X, v.Y, v.Z = a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return v
}

// Dot returns the dot product of v and a.
func (v *V3) Dot(a *V3) float64 { return v.X*a.X + v.Y*a.Y + v.Z*a.Z }

// Len returns the Euclidean length of v.
func (v *V3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Div divides each element of v by s, leaving v unchanged if s is zero.
func (v *V3) Div(s float64) *V3 {
	if s != 0 {
		inv := 1 / s
		v.X, v.Y, v.Z = v.X*inv, v.Y*inv, v.Z*inv
	}
	return v
}

// Unit normalizes v to length 1, leaving v unchanged if its length is zero.
func (v *V3) Unit() *V3 {
	if length := v.Len(); length != 0 {
		return v.Div(length)
	}
	return v
}
