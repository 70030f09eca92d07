// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/havenforge/engine/math/lin"
)

// Scene assets are authored as line-oriented text: a `version N` header,
// then one `node <id> <parent-id>` line per node in depth-first order
// followed by that node's attribute lines. Ids are per-file ordinals, not
// live arena indices — slot reuse means the same tree can occupy
// different indices between runs, so the file never records them.

const sceneFileVersion = 0

// Encode writes s as scene text. The root (id 0) is implicit: only its
// attributes are written, never a node line for it.
func (s *Scene) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "version %d\n", sceneFileVersion)
	ids := map[int]int{Root: 0}
	s.encodeAttrs(bw, Root)
	next := 1
	var walk func(parent int)
	walk = func(parent int) {
		s.Children(parent, func(child int) {
			ids[child] = next
			fmt.Fprintf(bw, "node %d %d\n", next, ids[parent])
			next++
			s.encodeAttrs(bw, child)
			walk(child)
		})
	}
	walk(Root)
	return bw.Flush()
}

func (s *Scene) encodeAttrs(w io.Writer, idx int) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	t := s.Local(idx)
	fmt.Fprintf(w, "position %s %s %s\n", f(t.Position.X), f(t.Position.Y), f(t.Position.Z))
	fmt.Fprintf(w, "euler %s %s %s\n", f(t.Euler.X), f(t.Euler.Y), f(t.Euler.Z))
	fmt.Fprintf(w, "scale %s %s %s\n", f(t.Scale.X), f(t.Scale.Y), f(t.Scale.Z))
	if m := s.Mesh(idx); m != 0 {
		fmt.Fprintf(w, "mesh_uuid %d\n", uint64(m))
	}
	if m := s.Material(idx); m != 0 {
		fmt.Fprintf(w, "material_uuid %d\n", uint64(m))
	}
	if l, ok := s.Light(idx); ok {
		fmt.Fprintf(w, "light %s %s %s %s %s\n",
			f(l.Color.X), f(l.Color.Y), f(l.Color.Z), f(l.Intensity), f(l.Range))
	}
	if c, ok := s.Camera(idx); ok {
		fmt.Fprintf(w, "camera %s %s %s\n", f(c.FovDegrees), f(c.Near), f(c.Far))
	}
}

// Decode parses scene text from r into a fresh Scene.
func Decode(r io.Reader) (*Scene, error) {
	s := New()
	byID := map[int]int{0: Root}
	cur := Root
	sawVersion := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "version":
			if len(fields) != 2 {
				return nil, fmt.Errorf("scene: malformed version line")
			}
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("scene: version: %w", err)
			}
			if v != sceneFileVersion {
				return nil, fmt.Errorf("scene: file version %d not supported", v)
			}
			sawVersion = true
		case "node":
			if len(fields) != 3 {
				return nil, fmt.Errorf("scene: malformed node line")
			}
			id, err1 := strconv.Atoi(fields[1])
			parentID, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("scene: malformed node line %q", strings.Join(fields, " "))
			}
			parent, ok := byID[parentID]
			if !ok {
				return nil, fmt.Errorf("scene: node %d references unknown parent %d", id, parentID)
			}
			cur = s.AddChildLast(parent)
			byID[id] = cur
		case "position", "euler", "scale":
			v, err := parseV3(fields)
			if err != nil {
				return nil, err
			}
			t := s.Local(cur)
			switch fields[0] {
			case "position":
				t.Position = v
			case "euler":
				t.Euler = v
				t.Rot = eulerToQuat(v.X, v.Y, v.Z)
			case "scale":
				t.Scale = v
			}
			s.SetLocal(cur, t)
		case "mesh_uuid", "material_uuid":
			if len(fields) != 2 {
				return nil, fmt.Errorf("scene: malformed %s line", fields[0])
			}
			u, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("scene: %s: %w", fields[0], err)
			}
			if fields[0] == "mesh_uuid" {
				s.SetMesh(cur, AssetRef(u))
			} else {
				s.SetMaterial(cur, AssetRef(u))
			}
		case "light":
			if len(fields) != 6 {
				return nil, fmt.Errorf("scene: malformed light line")
			}
			vals, err := parseFloats(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("scene: light: %w", err)
			}
			s.SetLight(cur, Light{
				Color:     lin.V3{X: vals[0], Y: vals[1], Z: vals[2]},
				Intensity: vals[3],
				Range:     vals[4],
			})
		case "camera":
			if len(fields) != 4 {
				return nil, fmt.Errorf("scene: malformed camera line")
			}
			vals, err := parseFloats(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("scene: camera: %w", err)
			}
			s.SetCamera(cur, Camera{FovDegrees: vals[0], Near: vals[1], Far: vals[2]})
		default:
			return nil, fmt.Errorf("scene: unknown file key %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawVersion {
		return nil, fmt.Errorf("scene: file missing version header")
	}
	return s, nil
}

func parseV3(fields []string) (lin.V3, error) {
	if len(fields) != 4 {
		return lin.V3{}, fmt.Errorf("scene: malformed %s line", fields[0])
	}
	vals, err := parseFloats(fields[1:])
	if err != nil {
		return lin.V3{}, fmt.Errorf("scene: %s: %w", fields[0], err)
	}
	return lin.V3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
