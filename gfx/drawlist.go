// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"sort"

	"github.com/havenforge/engine/handle"
)

// DrawEntry is one draw call's worth of state, populated by the
// application each frame.
type DrawEntry struct {
	Material           handle.Handle
	Mesh               handle.Handle
	InstanceDataOffset uint32
	SubMeshIndex       uint32

	// pipeline is resolved from Material at bucket time, not supplied by
	// the application; the sort key is (pipeline, material, mesh).
	pipeline handle.Handle
}

// DrawList is a frame's draw entries, not yet bucketed by pass.
type DrawList []DrawEntry

// Bucket resolves each entry's pipeline from its material (via the
// System's material table) and returns the entries sorted by
// (pipeline, material, mesh) to minimize GPU state changes.
func (s *System) Bucket(list DrawList) (DrawList, error) {
	out := make(DrawList, len(list))
	copy(out, list)
	for i := range out {
		mat, ok := s.materials.Get(out[i].Material)
		if !ok {
			continue
		}
		out[i].pipeline = mat.Pipeline
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].pipeline != out[j].pipeline {
			return handleLess(out[i].pipeline, out[j].pipeline)
		}
		if out[i].Material != out[j].Material {
			return handleLess(out[i].Material, out[j].Material)
		}
		return handleLess(out[i].Mesh, out[j].Mesh)
	})
	return out, nil
}

func handleLess(a, b handle.Handle) bool {
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Generation < b.Generation
}
