// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package load

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/havenforge/engine/math/lin"
)

// Obj reads a Wavefront OBJ text mesh and populates d with its first
// object's vertex/normal/texcoord/face data. Only a narrow slice of the
// format is understood: one triangulated object with per-vertex normals.
//
//	https://en.wikipedia.org/wiki/Wavefront_.obj_file#File_format
//
// The Reader r is expected to be opened and closed by the caller.
func Obj(r io.Reader, d *MshData) error {
	groups := groupObjLines(r)
	if len(groups) == 0 {
		return fmt.Errorf("load: no objects in .obj data")
	}
	raw := &rawObjData{}
	faces, err := parseObjLines(groups[0].lines, raw)
	if err != nil {
		return fmt.Errorf("load: parse obj: %w", err)
	}
	return buildMeshData(groups[0].name, raw, faces, d)
}

// objGroup is one "o <name> ... " object's raw, still-unparsed lines.
type objGroup struct {
	name  string
	lines []string
}

// rawObjData accumulates the file-global vertex/normal/texcoord points an
// OBJ file indexes by absolute position; face data below references it.
type rawObjData struct {
	positions []vec3
	normals   []vec3
	texcoords []texCoord
}

type vec3 struct{ x, y, z float32 }

type texCoord struct{ u, v float32 }

// objFace holds one triangle's three "v/t/n"-style index strings, still
// unparsed so parseFaceVertex can report which face was malformed.
type objFace struct {
	points [3]string
}

// groupObjLines splits an OBJ file's lines by "o <name>" markers, since a
// single file can describe more than one object.
func groupObjLines(r io.Reader) []objGroup {
	var groups []objGroup
	var current *objGroup
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		tokens := strings.Split(line, " ")
		if len(tokens) == 2 && tokens[0] == "o" {
			groups = append(groups, objGroup{name: strings.TrimSpace(tokens[1])})
			current = &groups[len(groups)-1]
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	return groups
}

// parseObjLines turns one object's raw lines into rawObjData's point
// arrays and the triangle faces that index them.
func parseObjLines(lines []string, raw *rawObjData) ([]objFace, error) {
	var faces []objFace
	for _, line := range lines {
		tokens := strings.Split(line, " ")
		if len(tokens) == 0 {
			continue
		}
		var f1, f2, f3 float32
		var s1, s2, s3 string
		switch tokens[0] {
		case "v":
			if _, err := fmt.Sscanf(line, "v %f %f %f", &f1, &f2, &f3); err != nil {
				return nil, fmt.Errorf("vertex %q: %w", line, err)
			}
			raw.positions = append(raw.positions, vec3{f1, f2, f3})
		case "vn":
			if _, err := fmt.Sscanf(line, "vn %f %f %f", &f1, &f2, &f3); err != nil {
				return nil, fmt.Errorf("normal %q: %w", line, err)
			}
			raw.normals = append(raw.normals, vec3{f1, f2, f3})
		case "vt":
			if _, err := fmt.Sscanf(line, "vt %f %f", &f1, &f2); err != nil {
				return nil, fmt.Errorf("texcoord %q: %w", line, err)
			}
			raw.texcoords = append(raw.texcoords, texCoord{f1, 1 - f2})
		case "f":
			if _, err := fmt.Sscanf(line, "f %s %s %s", &s1, &s2, &s3); err != nil {
				return nil, fmt.Errorf("face %q: %w", line, err)
			}
			faces = append(faces, objFace{[3]string{s1, s2, s3}})
		case "o", "s", "mtllib", "usemtl":
			// object name, smoothing group, and material references are
			// either handled by the caller or out of scope for this loader.
		}
	}
	return faces, nil
}

// buildMeshData converts raw/faces into d's flat, zero-indexed GPU
// layout, deduplicating vertex/texcoord pairs that multiple faces share
// and, at each shared vertex, adding every further face's normal to the
// stored one and renormalizing the result.
func buildMeshData(name string, raw *rawObjData, faces []objFace, d *MshData) error {
	d.Name = name
	vertexIndex := make(map[string]int)
	scratchA, scratchB := &lin.V3{}, &lin.V3{}

	for _, face := range faces {
		for _, point := range face.points {
			v, t, n, err := parseFaceVertex(point)
			if err != nil {
				return fmt.Errorf("face vertex %q: %w", point, err)
			}

			key := fmt.Sprintf("%d/%d", v, t)
			if idx, seen := vertexIndex[key]; !seen {
				idx = len(vertexIndex)
				vertexIndex[key] = idx
				d.V = append(d.V, raw.positions[v].x, raw.positions[v].y, raw.positions[v].z)
				d.N = append(d.N, raw.normals[n].x, raw.normals[n].y, raw.normals[n].z)
				if t != -1 {
					d.T = append(d.T, raw.texcoords[t].u, raw.texcoords[t].v)
				}
			} else {
				ni := idx * 3
				accumulated := scratchA.SetS(float64(d.N[ni]), float64(d.N[ni+1]), float64(d.N[ni+2]))
				shared := scratchB.SetS(float64(raw.normals[n].x), float64(raw.normals[n].y), float64(raw.normals[n].z))
				shared.Add(shared, accumulated).Unit()
				d.N[ni], d.N[ni+1], d.N[ni+2] = float32(shared.X), float32(shared.Y), float32(shared.Z)
			}
			d.F = append(d.F, uint16(vertexIndex[key]))
		}
	}
	if len(d.V) == 0 || len(d.F) == 0 {
		return fmt.Errorf("load: %q has no vertex or face data", name)
	}
	return nil
}

// parseFaceVertex splits one "v/t/n" or "v//n" face-vertex token into its
// zero-based position, texcoord, and normal indices. t is -1 when the
// token omits a texture coordinate.
func parseFaceVertex(token string) (v, t, n int, err error) {
	v, t, n = -1, -1, -1
	if _, err = fmt.Sscanf(token, "%d//%d", &v, &n); err != nil {
		if _, err = fmt.Sscanf(token, "%d/%d/%d", &v, &t, &n); err != nil {
			return -1, -1, -1, fmt.Errorf("unrecognized face index format")
		}
	}
	v--
	n--
	if t != -1 {
		t--
	}
	return v, t, n, nil
}
