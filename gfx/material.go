// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/havenforge/engine/handle"
)

// Material is a parameter buffer shaped by its Shader's reflected
// property schema, plus the texture handles its TypeTextureRef properties
// resolve to.
type Material struct {
	Shader   handle.Handle
	Pipeline handle.Handle
	props    PropertyDecls
	buf      []byte
	textures map[string]handle.Handle // property name -> bound texture, for TypeTextureRef properties.
}

// newMaterial allocates a zeroed property buffer sized to schema.
func newMaterial(shaderHandle handle.Handle, schema PropertyDecls) *Material {
	return &Material{
		Shader:   shaderHandle,
		props:    schema,
		buf:      make([]byte, schema.Size()),
		textures: map[string]handle.Handle{},
	}
}

// SetProperty writes value into name's slot, type-checked against the
// Material's schema. value's Go type must match the property's DataType:
// float64 for Float, int64 for Int, [2]float64 for Vec2, [3]/[4]float64
// for Vec3/Vec4, or handle.Handle for a TypeTextureRef property.
func (m *Material) SetProperty(name string, value interface{}) error {
	decl, ok := m.props.Find(name)
	if !ok {
		return fmt.Errorf("gfx: material has no property %q", name)
	}
	if decl.IsTexture {
		h, ok := value.(handle.Handle)
		if !ok {
			return fmt.Errorf("gfx: property %q expects a texture handle, got %T", name, value)
		}
		m.textures[name] = h
		binary.LittleEndian.PutUint32(m.buf[decl.Offset:], h.Index)
		return nil
	}
	switch decl.Type {
	case TypeFloat:
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("gfx: property %q expects float64, got %T", name, value)
		}
		binary.LittleEndian.PutUint32(m.buf[decl.Offset:], math.Float32bits(float32(f)))
	case TypeInt:
		i, ok := value.(int64)
		if !ok {
			return fmt.Errorf("gfx: property %q expects int64, got %T", name, value)
		}
		binary.LittleEndian.PutUint32(m.buf[decl.Offset:], uint32(int32(i)))
	case TypeVec2:
		v, ok := value.([2]float64)
		if !ok {
			return fmt.Errorf("gfx: property %q expects [2]float64, got %T", name, value)
		}
		putFloats(m.buf[decl.Offset:], v[0], v[1])
	case TypeVec3:
		v, ok := value.([3]float64)
		if !ok {
			return fmt.Errorf("gfx: property %q expects [3]float64, got %T", name, value)
		}
		putFloats(m.buf[decl.Offset:], v[0], v[1], v[2])
	case TypeVec4:
		v, ok := value.([4]float64)
		if !ok {
			return fmt.Errorf("gfx: property %q expects [4]float64, got %T", name, value)
		}
		putFloats(m.buf[decl.Offset:], v[0], v[1], v[2], v[3])
	default:
		return fmt.Errorf("gfx: property %q has unhandled type %v", name, decl.Type)
	}
	return nil
}

// GetProperty reads name's current value back out, type-checked the same
// way SetProperty wrote it.
func (m *Material) GetProperty(name string) (interface{}, error) {
	decl, ok := m.props.Find(name)
	if !ok {
		return nil, fmt.Errorf("gfx: material has no property %q", name)
	}
	if decl.IsTexture {
		return m.textures[name], nil
	}
	switch decl.Type {
	case TypeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(m.buf[decl.Offset:]))), nil
	case TypeInt:
		return int64(int32(binary.LittleEndian.Uint32(m.buf[decl.Offset:]))), nil
	case TypeVec2:
		return [2]float64{getFloat(m.buf, decl.Offset), getFloat(m.buf, decl.Offset+4)}, nil
	case TypeVec3:
		return [3]float64{getFloat(m.buf, decl.Offset), getFloat(m.buf, decl.Offset+4), getFloat(m.buf, decl.Offset+8)}, nil
	case TypeVec4:
		return [4]float64{getFloat(m.buf, decl.Offset), getFloat(m.buf, decl.Offset+4), getFloat(m.buf, decl.Offset+8), getFloat(m.buf, decl.Offset+12)}, nil
	default:
		return nil, fmt.Errorf("gfx: property %q has unhandled type %v", name, decl.Type)
	}
}

// Schema returns the material's property schema, in declaration order.
func (m *Material) Schema() PropertyDecls { return m.props }

func putFloats(dst []byte, vs ...float64) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(float32(v)))
	}
}

func getFloat(buf []byte, offset int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:])))
}
