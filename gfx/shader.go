// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataType is a reflected or declared shader property's value type.
type DataType int

const (
	TypeFloat DataType = iota
	TypeInt
	TypeVec2
	TypeVec3
	TypeVec4
	TypeTextureRef
)

// sizes maps each DataType to its footprint in a Material's property
// buffer, in bytes. TypeTextureRef stores a bindless 32-bit slot index.
var sizes = map[DataType]int{
	TypeFloat:      4,
	TypeInt:        4,
	TypeVec2:       8,
	TypeVec3:       12,
	TypeVec4:       16,
	TypeTextureRef: 4,
}

// PropertyDecl describes one property a Shader's Material instances
// expose: its name, type, byte offset within the property buffer, and
// whether it should be presented as a colour picker / texture reference
// by tooling.
type PropertyDecl struct {
	Name      string
	Type      DataType
	Offset    int
	IsColor   bool
	IsTexture bool
}

// PropertyDecls is a Shader's full reflected or declared property schema,
// in declaration order.
type PropertyDecls []PropertyDecl

// Size is the total byte length of a Material property buffer built from
// this schema.
func (d PropertyDecls) Size() int {
	total := 0
	for _, p := range d {
		end := p.Offset + sizes[p.Type]
		if end > total {
			total = end
		}
	}
	return total
}

// Find returns the declaration named name, if any.
func (d PropertyDecls) Find(name string) (PropertyDecl, bool) {
	for _, p := range d {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDecl{}, false
}

// Shader is a compiled GPU program plus its reflected property schema,
// which declares exactly what a Material built from it may hold.
type Shader struct {
	Name    string
	Program uint32 // GPU program handle from Device.CompileShader.
	Props   PropertyDecls
}

// reflectGLSL scans vertex and fragment shader source for `uniform <type>
// <name>;` declarations, classifying each uniform's GLSL type into a
// DataType and assigning it a packed offset.
func reflectGLSL(vsh, fsh string) PropertyDecls {
	var decls PropertyDecls
	seen := map[string]bool{}
	offset := 0
	scan := func(src string) {
		for _, line := range strings.Split(src, "\n") {
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) < 3 || fields[0] != "uniform" {
				continue
			}
			glslType := fields[1]
			name := stripDecl(fields[2])
			if seen[name] {
				continue
			}
			dt, isTex, ok := glslTypeToDataType(glslType)
			if !ok {
				continue
			}
			seen[name] = true
			decls = append(decls, PropertyDecl{
				Name:      name,
				Type:      dt,
				Offset:    offset,
				IsColor:   strings.Contains(strings.ToLower(name), "color") || strings.Contains(strings.ToLower(name), "colour"),
				IsTexture: isTex,
			})
			offset += sizes[dt]
		}
	}
	scan(vsh)
	scan(fsh)
	return decls
}

func stripDecl(id string) string {
	id = strings.TrimSuffix(id, ";")
	if i := strings.Index(id, "["); i >= 0 {
		id = id[:i]
	}
	return id
}

func glslTypeToDataType(glslType string) (DataType, bool, bool) {
	switch glslType {
	case "float":
		return TypeFloat, false, true
	case "int", "bool":
		return TypeInt, false, true
	case "vec2":
		return TypeVec2, false, true
	case "vec3":
		return TypeVec3, false, true
	case "vec4":
		return TypeVec4, false, true
	case "sampler2D", "samplerCube":
		return TypeTextureRef, true, true
	default:
		return 0, false, false
	}
}

// shaderSchemaFile is the YAML shape of a `.shader.yaml` sidecar: the
// property schema for a shader whose bytecode isn't available to scan at
// import time, e.g. one imported from a cooked cache rather than
// compiled locally.
type shaderSchemaFile struct {
	Properties []struct {
		Name    string `yaml:"name"`
		Type    string `yaml:"type"`
		Color   bool   `yaml:"color"`
		Texture bool   `yaml:"texture"`
	} `yaml:"properties"`
}

// decodeSchemaYAML parses a `.shader.yaml` sidecar into a PropertyDecls,
// assigning packed offsets in file order.
func decodeSchemaYAML(data []byte) (PropertyDecls, error) {
	var doc shaderSchemaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("gfx: decode shader schema: %w", err)
	}
	var decls PropertyDecls
	offset := 0
	for _, p := range doc.Properties {
		dt, err := yamlTypeToDataType(p.Type)
		if err != nil {
			return nil, err
		}
		decls = append(decls, PropertyDecl{
			Name:      p.Name,
			Type:      dt,
			Offset:    offset,
			IsColor:   p.Color,
			IsTexture: p.Texture || dt == TypeTextureRef,
		})
		offset += sizes[dt]
	}
	return decls, nil
}

func yamlTypeToDataType(s string) (DataType, error) {
	switch s {
	case "float":
		return TypeFloat, nil
	case "int":
		return TypeInt, nil
	case "vec2":
		return TypeVec2, nil
	case "vec3", "color3":
		return TypeVec3, nil
	case "vec4", "color4":
		return TypeVec4, nil
	case "texture":
		return TypeTextureRef, nil
	default:
		return 0, fmt.Errorf("gfx: unknown schema type %q", s)
	}
}
