// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package load

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Mtl reads a Wavefront MTL text material description into d.
//
//	https://en.wikipedia.org/wiki/Wavefront_.obj_file#File_format
//
// The Reader r is expected to be opened and closed by the caller.
func Mtl(r io.Reader, d *MtlData) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		tokens := strings.Split(line, " ")
		if len(tokens) == 0 {
			continue
		}
		var r1, g1, b1 float32
		switch tokens[0] {
		case "Ka":
			if _, err := fmt.Sscanf(line, "Ka %f %f %f", &r1, &g1, &b1); err != nil {
				return fmt.Errorf("load: ambient colour %q: %w", line, err)
			}
			d.KaR, d.KaG, d.KaB = r1, g1, b1
		case "Kd":
			if _, err := fmt.Sscanf(line, "Kd %f %f %f", &r1, &g1, &b1); err != nil {
				return fmt.Errorf("load: diffuse colour %q: %w", line, err)
			}
			d.KdR, d.KdG, d.KdB = r1, g1, b1
		case "Ks":
			if _, err := fmt.Sscanf(line, "Ks %f %f %f", &r1, &g1, &b1); err != nil {
				return fmt.Errorf("load: specular colour %q: %w", line, err)
			}
			d.KsR, d.KsG, d.KsB = r1, g1, b1
		case "d":
			if len(tokens) < 2 {
				continue
			}
			alpha, err := strconv.ParseFloat(strings.TrimSpace(tokens[1]), 32)
			if err != nil {
				return fmt.Errorf("load: transparency %q: %w", line, err)
			}
			d.Alpha = float32(alpha)
		case "Ns":
			if len(tokens) < 2 {
				continue
			}
			ns, err := strconv.ParseFloat(strings.TrimSpace(tokens[1]), 32)
			if err != nil {
				return fmt.Errorf("load: specular exponent %q: %w", line, err)
			}
			d.Ns = float32(ns)
		case "newmtl", "Ni", "illum":
			// material name, optical density, and illumination model are
			// not part of the fixed-function colour data MtlData carries.
		}
	}
	return nil
}
