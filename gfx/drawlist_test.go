// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"testing"

	"github.com/havenforge/engine/handle"
)

// TestBucketSortsByPipelineMaterialMesh checks entries come back sorted
// by (pipeline, material, mesh) so adjacent draws share GPU state.
func TestBucketSortsByPipelineMaterialMesh(t *testing.T) {
	sys := New(&fakeDevice{})

	pipelineA := handle.Handle{Index: 1, Generation: 1}
	pipelineB := handle.Handle{Index: 2, Generation: 1}

	matHandleLo, matLo := sys.materials.Acquire()
	matLo.Pipeline = pipelineB
	matHandleHi, matHi := sys.materials.Acquire()
	matHi.Pipeline = pipelineA

	list := DrawList{
		{Material: matHandleLo, Mesh: handle.Handle{Index: 5, Generation: 1}},
		{Material: matHandleHi, Mesh: handle.Handle{Index: 1, Generation: 1}},
		{Material: matHandleHi, Mesh: handle.Handle{Index: 0, Generation: 1}},
	}

	bucketed, err := sys.Bucket(list)
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	if len(bucketed) != 3 {
		t.Fatalf("got %d entries, want 3", len(bucketed))
	}
	// pipelineA entries (matHi) must sort before pipelineB (matLo), and
	// within pipelineA the two entries sort by mesh index.
	if bucketed[0].Material != matHandleHi || bucketed[0].Mesh.Index != 0 {
		t.Errorf("position 0: got %+v", bucketed[0])
	}
	if bucketed[1].Material != matHandleHi || bucketed[1].Mesh.Index != 1 {
		t.Errorf("position 1: got %+v", bucketed[1])
	}
	if bucketed[2].Material != matHandleLo {
		t.Errorf("position 2: got %+v", bucketed[2])
	}
}
