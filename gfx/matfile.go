// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/havenforge/engine/handle"
)

// Material and skybox assets are authored as line-oriented text: a
// `version N` header, then one `key value` line per field. A material's
// property block mirrors its shader's reflected schema, one `property
// <type> <name> <value...>` line per declaration, so an authored file and
// the schema it was written against can be checked for drift at import
// time. Texture-valued properties carry the referenced texture's asset
// UUID, resolved to a live handle only when the material is realized.

const (
	materialFileVersion = 0
	skyboxFileVersion   = 0
)

// MaterialProp is one property line of a material file: the property's
// name, its declared type, and its value using the same Go types
// Material.SetProperty accepts — except textures, which hold the
// referenced asset's UUID as a uint64.
type MaterialProp struct {
	Name  string
	Type  DataType
	Value interface{}
}

// MaterialFile is the parsed form of an on-disk material asset.
type MaterialFile struct {
	ShaderUUID uint64
	Props      []MaterialProp
}

// dataTypeTokens maps each DataType to its on-disk token and back.
var dataTypeTokens = map[DataType]string{
	TypeFloat:      "float",
	TypeInt:        "int",
	TypeVec2:       "vec2",
	TypeVec3:       "vec3",
	TypeVec4:       "vec4",
	TypeTextureRef: "texture",
}

var tokensToDataType = func() map[string]DataType {
	m := map[string]DataType{}
	for k, v := range dataTypeTokens {
		m[v] = k
	}
	return m
}()

// EncodeMaterial writes mf in the material text format.
func EncodeMaterial(w io.Writer, mf MaterialFile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "version %d\n", materialFileVersion)
	fmt.Fprintf(bw, "shader_uuid %d\n", mf.ShaderUUID)
	for _, p := range mf.Props {
		tok, ok := dataTypeTokens[p.Type]
		if !ok {
			return fmt.Errorf("gfx: material property %q has unknown type %v", p.Name, p.Type)
		}
		val, err := formatPropValue(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "property %s %s %s\n", tok, p.Name, val)
	}
	return bw.Flush()
}

func formatPropValue(p MaterialProp) (string, error) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch p.Type {
	case TypeFloat:
		v, ok := p.Value.(float64)
		if !ok {
			return "", fmt.Errorf("gfx: property %q: want float64, got %T", p.Name, p.Value)
		}
		return f(v), nil
	case TypeInt:
		v, ok := p.Value.(int64)
		if !ok {
			return "", fmt.Errorf("gfx: property %q: want int64, got %T", p.Name, p.Value)
		}
		return strconv.FormatInt(v, 10), nil
	case TypeVec2:
		v, ok := p.Value.([2]float64)
		if !ok {
			return "", fmt.Errorf("gfx: property %q: want [2]float64, got %T", p.Name, p.Value)
		}
		return f(v[0]) + " " + f(v[1]), nil
	case TypeVec3:
		v, ok := p.Value.([3]float64)
		if !ok {
			return "", fmt.Errorf("gfx: property %q: want [3]float64, got %T", p.Name, p.Value)
		}
		return f(v[0]) + " " + f(v[1]) + " " + f(v[2]), nil
	case TypeVec4:
		v, ok := p.Value.([4]float64)
		if !ok {
			return "", fmt.Errorf("gfx: property %q: want [4]float64, got %T", p.Name, p.Value)
		}
		return f(v[0]) + " " + f(v[1]) + " " + f(v[2]) + " " + f(v[3]), nil
	case TypeTextureRef:
		v, ok := p.Value.(uint64)
		if !ok {
			return "", fmt.Errorf("gfx: property %q: want uint64 texture uuid, got %T", p.Name, p.Value)
		}
		return strconv.FormatUint(v, 10), nil
	}
	return "", fmt.Errorf("gfx: property %q has unhandled type %v", p.Name, p.Type)
}

// DecodeMaterial parses the material text format from r. A version the
// current build does not understand is an error.
func DecodeMaterial(r io.Reader) (MaterialFile, error) {
	var mf MaterialFile
	scanner := bufio.NewScanner(r)
	sawVersion := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "version":
			v, err := versionField(fields)
			if err != nil {
				return mf, err
			}
			if v != materialFileVersion {
				return mf, fmt.Errorf("gfx: material file version %d not supported", v)
			}
			sawVersion = true
		case "shader_uuid":
			if len(fields) != 2 {
				return mf, fmt.Errorf("gfx: malformed shader_uuid line")
			}
			u, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return mf, fmt.Errorf("gfx: shader_uuid: %w", err)
			}
			mf.ShaderUUID = u
		case "property":
			p, err := parsePropLine(fields)
			if err != nil {
				return mf, err
			}
			mf.Props = append(mf.Props, p)
		default:
			return mf, fmt.Errorf("gfx: unknown material file key %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return mf, err
	}
	if !sawVersion {
		return mf, fmt.Errorf("gfx: material file missing version header")
	}
	return mf, nil
}

func versionField(fields []string) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("gfx: malformed version line")
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("gfx: version: %w", err)
	}
	return v, nil
}

func parsePropLine(fields []string) (MaterialProp, error) {
	if len(fields) < 4 {
		return MaterialProp{}, fmt.Errorf("gfx: malformed property line %q", strings.Join(fields, " "))
	}
	dt, ok := tokensToDataType[fields[1]]
	if !ok {
		return MaterialProp{}, fmt.Errorf("gfx: unknown property type %q", fields[1])
	}
	p := MaterialProp{Name: fields[2], Type: dt}
	args := fields[3:]
	parseVec := func(n int) ([4]float64, error) {
		var out [4]float64
		if len(args) != n {
			return out, fmt.Errorf("gfx: property %q: want %d components, got %d", p.Name, n, len(args))
		}
		for i := 0; i < n; i++ {
			v, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return out, fmt.Errorf("gfx: property %q: %w", p.Name, err)
			}
			out[i] = v
		}
		return out, nil
	}
	switch dt {
	case TypeFloat:
		v, err := parseVec(1)
		if err != nil {
			return p, err
		}
		p.Value = v[0]
	case TypeInt:
		if len(args) != 1 {
			return p, fmt.Errorf("gfx: property %q: want 1 component", p.Name)
		}
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return p, fmt.Errorf("gfx: property %q: %w", p.Name, err)
		}
		p.Value = v
	case TypeVec2:
		v, err := parseVec(2)
		if err != nil {
			return p, err
		}
		p.Value = [2]float64{v[0], v[1]}
	case TypeVec3:
		v, err := parseVec(3)
		if err != nil {
			return p, err
		}
		p.Value = [3]float64{v[0], v[1], v[2]}
	case TypeVec4:
		v, err := parseVec(4)
		if err != nil {
			return p, err
		}
		p.Value = v
	case TypeTextureRef:
		if len(args) != 1 {
			return p, fmt.Errorf("gfx: property %q: want 1 texture uuid", p.Name)
		}
		u, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return p, fmt.Errorf("gfx: property %q: %w", p.Name, err)
		}
		p.Value = u
	}
	return p, nil
}

// ExportMaterial snapshots m's current property values into a
// MaterialFile against its schema. textureUUID maps a texture property's
// bound handle back to its asset UUID; properties whose handle is unknown
// to the map are written with uuid 0.
func ExportMaterial(m *Material, shaderUUID uint64, textureUUID map[handle.Handle]uint64) (MaterialFile, error) {
	mf := MaterialFile{ShaderUUID: shaderUUID}
	for _, decl := range m.Schema() {
		v, err := m.GetProperty(decl.Name)
		if err != nil {
			return mf, err
		}
		p := MaterialProp{Name: decl.Name, Type: decl.Type}
		if decl.IsTexture {
			h, _ := v.(handle.Handle)
			p.Type = TypeTextureRef
			p.Value = textureUUID[h]
		} else {
			p.Value = v
		}
		mf.Props = append(mf.Props, p)
	}
	return mf, nil
}

// Apply writes mf's property block into m, which must have been built
// from the same shader schema the file was authored against. Texture
// properties are resolved from asset UUID to a live handle through
// resolveTex; an unresolvable texture is an error rather than a silent
// unbound sampler.
func (mf MaterialFile) Apply(m *Material, resolveTex func(uuid uint64) (handle.Handle, bool)) error {
	for _, p := range mf.Props {
		if p.Type == TypeTextureRef {
			uuid, _ := p.Value.(uint64)
			h, ok := resolveTex(uuid)
			if !ok {
				return fmt.Errorf("gfx: material references unknown texture %d", uuid)
			}
			if err := m.SetProperty(p.Name, h); err != nil {
				return err
			}
			continue
		}
		if err := m.SetProperty(p.Name, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// SkyboxFile describes a cubemap skybox asset: one texture asset UUID per
// face.
type SkyboxFile struct {
	Right, Left, Top, Bottom, Front, Back uint64
}

var skyboxFaceKeys = []string{
	"right_texture_uuid",
	"left_texture_uuid",
	"top_texture_uuid",
	"bottom_texture_uuid",
	"front_texture_uuid",
	"back_texture_uuid",
}

func (s *SkyboxFile) faces() []*uint64 {
	return []*uint64{&s.Right, &s.Left, &s.Top, &s.Bottom, &s.Front, &s.Back}
}

// EncodeSkybox writes s in the skybox text format.
func EncodeSkybox(w io.Writer, s SkyboxFile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "version %d\n", skyboxFileVersion)
	for i, face := range s.faces() {
		fmt.Fprintf(bw, "%s %d\n", skyboxFaceKeys[i], *face)
	}
	return bw.Flush()
}

// DecodeSkybox parses the skybox text format from r.
func DecodeSkybox(r io.Reader) (SkyboxFile, error) {
	var s SkyboxFile
	byKey := map[string]*uint64{}
	for i, face := range s.faces() {
		byKey[skyboxFaceKeys[i]] = face
	}
	scanner := bufio.NewScanner(r)
	sawVersion := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "version" {
			v, err := versionField(fields)
			if err != nil {
				return s, err
			}
			if v != skyboxFileVersion {
				return s, fmt.Errorf("gfx: skybox file version %d not supported", v)
			}
			sawVersion = true
			continue
		}
		dst, ok := byKey[fields[0]]
		if !ok {
			return s, fmt.Errorf("gfx: unknown skybox file key %q", fields[0])
		}
		if len(fields) != 2 {
			return s, fmt.Errorf("gfx: malformed %s line", fields[0])
		}
		u, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return s, fmt.Errorf("gfx: %s: %w", fields[0], err)
		}
		*dst = u
	}
	if err := scanner.Err(); err != nil {
		return s, err
	}
	if !sawVersion {
		return s, fmt.Errorf("gfx: skybox file missing version header")
	}
	return s, nil
}
