// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"

	ximage "golang.org/x/image/draw"

	"github.com/havenforge/engine/asset"
	"github.com/havenforge/engine/handle"
	"github.com/havenforge/engine/load"
)

// Font is a bitmap font's glyph atlas metrics (load.FntData) plus the
// atlas Texture it indexes into, supplied as the resource's first
// dependency.
type Font struct {
	Width, Height int
	Glyphs        []load.Glyph
	Atlas         handle.Handle
}

// fragmentMarker splits a combined GLSL asset's vertex and fragment
// sections; source without the marker (a plain .vert or .frag file) is
// compiled as the vertex stage with an empty fragment stage.
const fragmentMarker = "// --- fragment ---"

// CreateResource decodes data into the GPU resource type t names,
// implementing asset.Renderer so asset.Manager's load jobs can call
// straight into this System. Each asset Type is decoded by the matching
// stateless load package function.
func (s *System) CreateResource(t asset.Type, data []byte, deps []handle.Handle) (handle.Handle, error) {
	switch t {
	case asset.TypeMesh:
		return s.createMesh(data)
	case asset.TypeMaterial:
		return s.createMaterial(data, deps)
	case asset.TypeTexture:
		return s.createTexture(data)
	case asset.TypeShader:
		return s.createShader(data)
	case asset.TypeFont:
		return s.createFont(data, deps)
	default:
		return handle.Handle{}, fmt.Errorf("gfx: unsupported resource type %v", t)
	}
}

// DestroyResource tears down the GPU resource addressed by h, dispatching
// to the matching table's Release and the device's matching Destroy call.
func (s *System) DestroyResource(t asset.Type, h handle.Handle) {
	switch t {
	case asset.TypeMesh:
		if mesh, ok := s.meshes.Get(h); ok {
			s.device.DestroyMesh(mesh.Slot)
			s.meshes.Release(h)
		}
	case asset.TypeMaterial:
		s.materials.Release(h)
	case asset.TypeTexture:
		if tex, ok := s.textures.Get(h); ok {
			s.device.DestroyTexture(tex.Slot)
			s.textures.Release(h)
		}
	case asset.TypeShader:
		if sh, ok := s.shaders.Get(h); ok {
			s.device.DestroyShader(sh.Program)
			s.shaders.Release(h)
		}
	case asset.TypeFont:
		// the atlas texture dependency is released separately by the
		// asset manager, since it is tracked as a child dependency, not
		// owned by the Font resource itself.
		s.fonts.Release(h)
	}
}

func (s *System) createMesh(data []byte) (handle.Handle, error) {
	var d load.MshData
	if err := load.Obj(bytes.NewReader(data), &d); err != nil {
		return handle.Handle{}, fmt.Errorf("gfx: decode mesh: %w", err)
	}
	indices := make([]uint16, len(d.F))
	copy(indices, d.F)
	vertices := interleaveVNT(d.V, d.N, d.T)
	slot, err := s.device.UploadMesh(vertices, indices)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("gfx: upload mesh: %w", err)
	}
	h, mesh := s.meshes.Acquire()
	mesh.Name = d.Name
	mesh.VertexCount = len(d.V) / 3
	mesh.IndexCount = len(indices)
	mesh.Slot = slot
	return h, nil
}

// interleaveVNT packs position/normal/texcoord streams into one
// vertex-per-record byte buffer, the layout a vertex-attribute binding
// expects, rather than uploading separate buffers per attribute.
func interleaveVNT(v, n, t []float32) []byte {
	vertCount := len(v) / 3
	stride := 3 + 3 + 2
	out := make([]byte, 0, vertCount*stride*4)
	var scratch [4]byte
	putF32 := func(f float32) {
		bits := float32bits(f)
		scratch[0] = byte(bits)
		scratch[1] = byte(bits >> 8)
		scratch[2] = byte(bits >> 16)
		scratch[3] = byte(bits >> 24)
		out = append(out, scratch[:]...)
	}
	for i := 0; i < vertCount; i++ {
		putF32(v[i*3])
		putF32(v[i*3+1])
		putF32(v[i*3+2])
		if i*3+2 < len(n) {
			putF32(n[i*3])
			putF32(n[i*3+1])
			putF32(n[i*3+2])
		} else {
			putF32(0)
			putF32(0)
			putF32(0)
		}
		if i*2+1 < len(t) {
			putF32(t[i*2])
			putF32(t[i*2+1])
		} else {
			putF32(0)
			putF32(0)
		}
	}
	return out
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func (s *System) createMaterial(data []byte, deps []handle.Handle) (handle.Handle, error) {
	var shaderHandle handle.Handle
	var schema PropertyDecls
	if len(deps) > 0 {
		shaderHandle = deps[0]
		if sh, ok := s.shaders.Get(shaderHandle); ok {
			schema = sh.Props
		}
	}

	if bytes.HasPrefix(data, []byte("version")) {
		// authored material text: shader-schema'd property block, with
		// texture references resolved from the dependency handles the
		// asset manager acquired in file order (shader first, then each
		// texture).
		if schema == nil {
			return handle.Handle{}, fmt.Errorf("gfx: material file has no loaded shader dependency")
		}
		mf, err := DecodeMaterial(bytes.NewReader(data))
		if err != nil {
			return handle.Handle{}, err
		}
		h, mat := s.materials.Acquire()
		*mat = *newMaterial(shaderHandle, schema)
		texDeps := deps[1:]
		di := 0
		err = mf.Apply(mat, func(uuid uint64) (handle.Handle, bool) {
			if di >= len(texDeps) {
				return handle.Handle{}, false
			}
			th := texDeps[di]
			di++
			return th, true
		})
		if err != nil {
			s.materials.Release(h)
			return handle.Handle{}, err
		}
		return h, nil
	}

	if schema == nil {
		// no shader dependency: a plain Wavefront .mtl declares
		// fixed-function colours instead of a reflected schema, so build
		// a material against the built-in fixed-function schema. The
		// buffer is still typed and type-checked, just against a schema
		// this package declares rather than one reflected from GLSL.
		var mtl load.MtlData
		if err := load.Mtl(bytes.NewReader(data), &mtl); err != nil {
			return handle.Handle{}, fmt.Errorf("gfx: decode material: %w", err)
		}
		schema = fixedFunctionSchema
		h, mat := s.materials.Acquire()
		*mat = *newMaterial(handle.Handle{}, schema)
		mat.SetProperty("ambient", [3]float64{float64(mtl.KaR), float64(mtl.KaG), float64(mtl.KaB)})
		mat.SetProperty("diffuse", [3]float64{float64(mtl.KdR), float64(mtl.KdG), float64(mtl.KdB)})
		mat.SetProperty("specular", [3]float64{float64(mtl.KsR), float64(mtl.KsG), float64(mtl.KsB)})
		mat.SetProperty("shininess", float64(mtl.Ns))
		mat.SetProperty("alpha", float64(mtl.Alpha))
		return h, nil
	}

	h, mat := s.materials.Acquire()
	*mat = *newMaterial(shaderHandle, schema)

	// remaining deps bind, in schema declaration order, the schema's
	// texture properties.
	texDeps := deps[1:]
	di := 0
	for _, decl := range schema {
		if !decl.IsTexture || di >= len(texDeps) {
			continue
		}
		if err := mat.SetProperty(decl.Name, texDeps[di]); err != nil {
			return handle.Handle{}, fmt.Errorf("gfx: bind texture property %q: %w", decl.Name, err)
		}
		di++
	}
	return h, nil
}

// fixedFunctionSchema is the property layout a plain .mtl asset (no
// shader dependency) is decoded against.
var fixedFunctionSchema = PropertyDecls{
	{Name: "ambient", Type: TypeVec3, Offset: 0, IsColor: true},
	{Name: "diffuse", Type: TypeVec3, Offset: 12, IsColor: true},
	{Name: "specular", Type: TypeVec3, Offset: 24, IsColor: true},
	{Name: "shininess", Type: TypeFloat, Offset: 36},
	{Name: "alpha", Type: TypeFloat, Offset: 40},
}

func (s *System) createTexture(data []byte) (handle.Handle, error) {
	var d load.ImgData
	if err := load.Png(bytes.NewReader(data), &d); err != nil {
		return handle.Handle{}, fmt.Errorf("gfx: decode texture: %w", err)
	}
	bounds := d.Img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mips := generateMipChain(d.Img)

	pixels := imageToRGBA(d.Img)
	slot, err := s.device.UploadTexture(w, h, pixels)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("gfx: upload texture: %w", err)
	}
	th, tex := s.textures.Acquire()
	tex.Name = fmt.Sprintf("texture#%d", slot)
	tex.Width, tex.Height = w, h
	tex.MipLevels = len(mips)
	tex.Slot = slot
	return th, nil
}

// generateMipChain produces successively half-sized images down to 1x1
// using golang.org/x/image/draw's bilinear scaler.
func generateMipChain(src image.Image) []image.Image {
	levels := []image.Image{src}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cur := src
	for w > 1 || h > 1 {
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		ximage.BiLinear.Scale(dst, dst.Bounds(), cur, cur.Bounds(), ximage.Over, nil)
		levels = append(levels, dst)
		cur = dst
	}
	return levels
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func imageToRGBA(img image.Image) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, 0, w*h*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}
	return out
}

func (s *System) createShader(data []byte) (handle.Handle, error) {
	vsh, fsh := splitStages(string(data))
	program, err := s.device.CompileShader(vsh, fsh)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("gfx: compile shader: %w", err)
	}
	props := reflectGLSL(vsh, fsh)
	h, sh := s.shaders.Acquire()
	sh.Program = program
	sh.Props = props
	return h, nil
}

func splitStages(src string) (vsh, fsh string) {
	if i := strings.Index(src, fragmentMarker); i >= 0 {
		return src[:i], src[i+len(fragmentMarker):]
	}
	return src, ""
}

func (s *System) createFont(data []byte, deps []handle.Handle) (handle.Handle, error) {
	fd, err := load.Fnt(bytes.NewReader(data))
	if err != nil {
		return handle.Handle{}, fmt.Errorf("gfx: decode font: %w", err)
	}
	var atlas handle.Handle
	if len(deps) > 0 {
		atlas = deps[0]
	}
	h, f := s.fonts.Acquire()
	f.Width, f.Height = fd.W, fd.H
	f.Glyphs = fd.Glyphs
	f.Atlas = atlas
	return h, nil
}
