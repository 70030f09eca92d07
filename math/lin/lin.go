// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package lin is the engine's CPU-side vector/quaternion/matrix library,
// trimmed to the row-vector (v' = v * M) subset scene.Scene actually
// composes transforms with: 3-element vectors, unit quaternions, and
// 4x4 matrices built from scale/rotate/translate.
package lin

import "math"

// Epsilon is the tolerance Aeq uses to treat two floats as equal.
const Epsilon = 0.000001

// degToRad converts degrees to radians; Rad wraps it as the package's
// public entry point since every caller works in authored degrees.
const degToRad = math.Pi / 180.0

// Rad converts deg degrees to radians.
func Rad(deg float64) float64 { return deg * degToRad }

// Aeq reports whether a and b are close enough to be considered equal.
func Aeq(a, b float64) bool { return math.Abs(a-b) < Epsilon }
