// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package load

// Buffer packages typed vertex/index data as raw bytes the renderer can
// upload to the GPU without the load package knowing anything about a
// particular graphics API's buffer types.

import (
	"fmt"
	"unsafe"
)

// Buffer holds little-endian byte data destined for a GPU buffer, plus
// enough shape information (element count and per-element stride) for
// the renderer to describe it to a vertex/index binding.
type Buffer struct {
	Data   []byte
	Count  uint32
	Stride uint32
}

// F32Buffer packs a slice of float32s (e.g. positions or normals) into a
// Buffer of dimension-wide elements, such as vec2 or vec3.
func F32Buffer(values []float32, dimension uint32) Buffer {
	if len(values) == 0 {
		return Buffer{Stride: 4 * dimension}
	}
	return Buffer{
		Stride: 4 * dimension,
		Count:  uint32(len(values)) / dimension,
		Data:   unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4),
	}
}

// U32Buffer packs a slice of uint32s into a Buffer of dimension-wide
// elements, such as uvec3 or uvec4.
func U32Buffer(values []uint32, dimension uint32) Buffer {
	if len(values) == 0 {
		return Buffer{Stride: 4 * dimension}
	}
	return Buffer{
		Stride: 4 * dimension,
		Count:  uint32(len(values)) / dimension,
		Data:   unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4),
	}
}

// U16Buffer packs a slice of uint16 vertex indices into a Buffer.
func U16Buffer(indexes []uint16) Buffer {
	if len(indexes) == 0 {
		return Buffer{Stride: 2}
	}
	return Buffer{
		Stride: 2,
		Count:  uint32(len(indexes)),
		Data:   unsafe.Slice((*byte)(unsafe.Pointer(&indexes[0])), len(indexes)*2),
	}
}

// DumpF32 prints buff's bytes as float32 tuples of buff.Stride/4
// dimensions, for debugging mesh data at a REPL or in a failing test.
func (buff Buffer) DumpF32(name string) {
	if buff.Count == 0 {
		fmt.Printf("%s: empty\n", name)
		return
	}
	dim := int(buff.Stride / 4)
	values := unsafe.Slice((*float32)(unsafe.Pointer(&buff.Data[0])), int(buff.Count)*dim)
	fmt.Printf("%s:%d\n", name, len(values))
	for i := 0; i < len(values); i += dim {
		switch dim {
		case 2:
			fmt.Printf("  %+f,%+f,\n", values[i], values[i+1])
		case 3:
			fmt.Printf("  %+f,%+f,%+f,\n", values[i], values[i+1], values[i+2])
		}
	}
}

// DumpU16 prints buff's bytes as uint16 triangle indices, for debugging
// index data at a REPL or in a failing test.
func (buff Buffer) DumpU16(name string) {
	if buff.Count == 0 {
		fmt.Printf("%s: empty\n", name)
		return
	}
	indexes := unsafe.Slice((*uint16)(unsafe.Pointer(&buff.Data[0])), buff.Count)
	fmt.Printf("%s:%d\n", name, len(indexes))
	for i := 0; i+2 < len(indexes); i += 3 {
		fmt.Printf("  %d,%d,%d,\n", indexes[i], indexes[i+1], indexes[i+2])
	}
}
