// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/havenforge/engine/handle"
)

var matFileSchema = PropertyDecls{
	{Name: "tint", Type: TypeVec3, Offset: 0, IsColor: true},
	{Name: "roughness", Type: TypeFloat, Offset: 12},
	{Name: "layers", Type: TypeInt, Offset: 16},
	{Name: "uv_scale", Type: TypeVec2, Offset: 20},
	{Name: "albedo", Type: TypeTextureRef, Offset: 28, IsTexture: true},
}

// TestMaterialFileRoundTrip sets properties, serializes the material,
// imports the text back, applies it to a fresh material, and checks every
// property reads back equal.
func TestMaterialFileRoundTrip(t *testing.T) {
	src := newMaterial(handle.Handle{}, matFileSchema)
	tex := handle.Handle{Index: 5, Generation: 2}
	for name, v := range map[string]interface{}{
		"tint":      [3]float64{0.25, 0.5, 1},
		"roughness": 0.75,
		"layers":    int64(3),
		"uv_scale":  [2]float64{2, 4},
		"albedo":    tex,
	} {
		if err := src.SetProperty(name, v); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}

	mf, err := ExportMaterial(src, 42, map[handle.Handle]uint64{tex: 777})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var buf bytes.Buffer
	if err := EncodeMaterial(&buf, mf); err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeMaterial(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ShaderUUID != 42 {
		t.Fatalf("shader uuid = %d, want 42", decoded.ShaderUUID)
	}

	dst := newMaterial(handle.Handle{}, matFileSchema)
	err = decoded.Apply(dst, func(uuid uint64) (handle.Handle, bool) {
		if uuid != 777 {
			return handle.Handle{}, false
		}
		return tex, true
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	for _, name := range []string{"tint", "roughness", "layers", "uv_scale", "albedo"} {
		want, _ := src.GetProperty(name)
		got, err := dst.GetProperty(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		if got != want {
			t.Fatalf("property %s = %v after round trip, want %v", name, got, want)
		}
	}
}

func TestDecodeMaterialRejectsUnsupportedVersion(t *testing.T) {
	_, err := DecodeMaterial(strings.NewReader("version 9\nshader_uuid 1\n"))
	if err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
}

func TestDecodeMaterialRequiresVersionHeader(t *testing.T) {
	_, err := DecodeMaterial(strings.NewReader("shader_uuid 1\n"))
	if err == nil {
		t.Fatal("expected an error for a missing version header")
	}
}

func TestApplyFailsOnUnresolvableTexture(t *testing.T) {
	mf := MaterialFile{Props: []MaterialProp{
		{Name: "albedo", Type: TypeTextureRef, Value: uint64(12)},
	}}
	dst := newMaterial(handle.Handle{}, matFileSchema)
	err := mf.Apply(dst, func(uuid uint64) (handle.Handle, bool) { return handle.Handle{}, false })
	if err == nil {
		t.Fatal("expected an error applying an unknown texture uuid")
	}
}

func TestSkyboxFileRoundTrip(t *testing.T) {
	s := SkyboxFile{Right: 1, Left: 2, Top: 3, Bottom: 4, Front: 5, Back: 6}
	var buf bytes.Buffer
	if err := EncodeSkybox(&buf, s); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeSkybox(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != s {
		t.Fatalf("round trip = %+v, want %+v", got, s)
	}
}
