// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package gfx implements the engine's frame-graph renderer: handle-pooled
// resource tables for textures, meshes, materials, shaders, and pipeline
// states; shader reflection into a typed property schema; materials built
// on that schema; a declarative frame-graph compiler producing a
// topologically sorted pass order with resolve/barrier insertion; and the
// per-frame driver loop. The concrete GPU API backend is plugged in
// through the Device capability interface; this package never calls a
// graphics API directly.
package gfx

import "github.com/havenforge/engine/handle"

// Texture is a GPU-resident image and its sampling parameters.
type Texture struct {
	Name          string
	Width, Height int
	MipLevels     int
	Slot          uint32 // Device.UploadTexture's returned bindless slot.
}

// Mesh is a GPU-resident vertex/index buffer pair.
type Mesh struct {
	Name        string
	VertexCount int
	IndexCount  int
	Slot        uint32 // Device.UploadMesh's returned bindless slot.
}

// PipelineState is the fixed-function and shader-stage configuration a
// draw call binds before issuing, keyed by the Shader it was built from.
type PipelineState struct {
	Shader handle.Handle
}

// System owns every resource table plus the frame-graph and per-frame
// driver state. It implements asset.Renderer, decoding asset bytes into
// GPU resources via the load package's format decoders.
type System struct {
	textures  *handle.Pool[Texture]
	meshes    *handle.Pool[Mesh]
	materials *handle.Pool[Material]
	shaders   *handle.Pool[Shader]
	pipelines *handle.Pool[PipelineState]
	fonts     *handle.Pool[Font]

	device Device

	schemas map[string]PropertyDecls // shader name -> reflected/sidecar schema, for .shader.yaml lookups.
}

// Device is the abstract GPU backend capability System drives: uploading
// resource bytes and issuing the command-buffer calls a compiled
// FrameGraph needs. One implementation exists per GPU API, plugged in at
// startup; tests use a recording fake.
type Device interface {
	UploadTexture(w, h int, pixels []byte) (slot uint32, err error)
	UploadMesh(vertices []byte, indices []uint16) (slot uint32, err error)
	CompileShader(vsh, fsh string) (program uint32, err error)

	DestroyTexture(slot uint32)
	DestroyMesh(slot uint32)
	DestroyShader(program uint32)

	BeginPass(name string, clear bool)
	EndPass()
	Barrier()
	Draw(entry DrawEntry)

	AcquireSwapImage() (recreated bool, err error)
	Submit() error
	Present() error
}

// New creates a gfx System backed by device. Resource tables start empty;
// CreateResource populates them as assets are loaded.
func New(device Device) *System {
	return &System{
		textures:  handle.New[Texture](),
		meshes:    handle.New[Mesh](),
		materials: handle.New[Material](),
		shaders:   handle.New[Shader](),
		pipelines: handle.New[PipelineState](),
		fonts:     handle.New[Font](),
		device:    device,
		schemas:   map[string]PropertyDecls{},
	}
}
