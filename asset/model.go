// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"encoding/base64"
	"fmt"

	"gopkg.in/yaml.v3"
)

// modelBundle is the YAML shape of a `.model` composite asset: an authored
// bundle embedding its mesh (Wavefront OBJ text), material (Wavefront MTL
// text), and texture (base64-encoded PNG bytes) children inline, so a
// single import pulls in everything a renderable model needs in one file.
// The sections are limited to what the load package can decode.
type modelBundle struct {
	Mesh struct {
		Name string `yaml:"name"`
		Obj  string `yaml:"obj"`
	} `yaml:"mesh"`
	Material struct {
		Name string `yaml:"name"`
		Mtl  string `yaml:"mtl"`
	} `yaml:"material"`
	Texture struct {
		Name      string `yaml:"name"`
		PNGBase64 string `yaml:"png_base64"`
	} `yaml:"texture"`
}

// ModelParser implements CompositeParser for TypeModel, splitting a
// modelBundle into its mesh/material/texture ChildAsset entries.
type ModelParser struct{}

// ParseChildren decodes data as a modelBundle and returns its mesh child,
// followed by its material and texture children where present.
func (ModelParser) ParseChildren(data []byte) ([]ChildAsset, error) {
	var bundle modelBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("asset: decode model bundle: %w", err)
	}
	if bundle.Mesh.Obj == "" {
		return nil, fmt.Errorf("asset: model bundle has no mesh.obj section")
	}
	if bundle.Mesh.Name == "" {
		bundle.Mesh.Name = "mesh"
	}
	if bundle.Material.Name == "" {
		bundle.Material.Name = "material"
	}

	children := []ChildAsset{
		{LocalName: bundle.Mesh.Name + ".obj", Type: TypeMesh, Data: []byte(bundle.Mesh.Obj)},
	}
	if bundle.Material.Mtl != "" {
		children = append(children, ChildAsset{LocalName: bundle.Material.Name + ".mtl", Type: TypeMaterial, Data: []byte(bundle.Material.Mtl)})
	}
	if bundle.Texture.PNGBase64 != "" {
		png, err := base64.StdEncoding.DecodeString(bundle.Texture.PNGBase64)
		if err != nil {
			return nil, fmt.Errorf("asset: decode model bundle texture: %w", err)
		}
		name := bundle.Texture.Name
		if name == "" {
			name = "texture"
		}
		children = append(children, ChildAsset{LocalName: name + ".png", Type: TypeTexture, Data: png})
	}
	return children, nil
}
