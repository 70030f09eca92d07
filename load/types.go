// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package load decodes the on-disk asset formats (Wavefront OBJ/MTL,
// PNG, and BMFont FNT) into flat, GPU-ready data structures. Every
// decoder in this package takes an io.Reader over already-read asset
// bytes and is stateless: the asset package's load jobs (see
// gfx.CreateResource) are the only caller, and they own locating,
// reading, and caching the bytes on disk.
package load

import "image"

// ImgData holds a decoded image ready to be uploaded to the GPU as a
// Texture. A successful Png import replaces Img with the new image.
type ImgData struct {
	Img image.Image
}

// MshData holds one mesh's vertex attributes in the flat, GPU-friendly
// layout the renderer expects: zero-indexed position/normal/texcoord
// buffers and the zero-indexed triangle faces that reference them.
type MshData struct {
	Name string
	V    []float32 // positions, 3 floats per vertex.
	N    []float32 // normals, 3 floats per vertex.
	T    []float32 // texture coordinates, 2 floats per vertex.
	F    []uint16  // triangle face indexes into V/N/T.
}

// MtlData holds one material's fixed-function colour and shininess
// properties, as read from a Wavefront MTL file.
type MtlData struct {
	KaR, KaG, KaB float32 // ambient colour.
	KdR, KdG, KdB float32 // diffuse colour.
	KsR, KsG, KsB float32 // specular colour.
	Alpha         float32 // transparency.
	Ns            float32 // specular exponent.
}
