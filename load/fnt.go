// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package load

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// FntData describes a bitmap font's glyph atlas: the atlas texture's
// dimensions in pixels and where each glyph's cell sits within it. The
// renderer pairs it with the atlas texture itself (loaded separately as
// an image asset) to build its font resource.
type FntData struct {
	W, H   int // atlas dimensions in pixels.
	Glyphs []Glyph
}

// Glyph locates one character's cell inside the atlas and carries the
// pen metrics needed to place it in a line of text.
type Glyph struct {
	Char       rune
	X, Y, W, H int // cell rectangle within the atlas, in pixels.
	Xo, Yo     int // draw offset from the pen position.
	Xa         int // horizontal pen advance after drawing.
}

// fntCommonFormat and fntGlyphFormat are the two line shapes this decoder
// cares about in the BMFont text format
// (www.angelcode.com/products/bmfont/doc/file_format.html); everything
// else in the file is skipped.
const (
	fntCommonFormat = "common lineHeight=%d base=%d scaleW=%d scaleH=%d pages=%d packed=%d alphaChnl=%d redChnl=%d greenChnl=%d blueChnl=%d"
	fntGlyphFormat  = "char id=%d x=%d y=%d width=%d height=%d xoffset=%d yoffset=%d xadvance=%d page=%d chnl=%d"
)

// Fnt reads a BMFont-format text file into FntData.
//
// The Reader r is expected to be opened and closed by the caller.
func Fnt(r io.Reader) (*FntData, error) {
	data := &FntData{}
	sawCommon := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.Join(strings.Fields(scanner.Text()), " ")
		switch {
		case strings.HasPrefix(line, "common "):
			var lh, base, w, h, pages, packed, a, red, g, b int
			if _, err := fmt.Sscanf(line, fntCommonFormat, &lh, &base, &w, &h, &pages, &packed, &a, &red, &g, &b); err != nil {
				return nil, fmt.Errorf("load: font common line %q: %w", line, err)
			}
			data.W, data.H = w, h
			sawCommon = true
		case strings.HasPrefix(line, "char "):
			var id, x, y, w, h, xo, yo, xa, page, chnl int
			if _, err := fmt.Sscanf(line, fntGlyphFormat, &id, &x, &y, &w, &h, &xo, &yo, &xa, &page, &chnl); err != nil {
				continue // "char " lines that do not match the glyph format.
			}
			data.Glyphs = append(data.Glyphs, Glyph{
				Char: rune(id),
				X:    x, Y: y, W: w, H: h,
				Xo: xo, Yo: yo, Xa: xa,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load: read font: %w", err)
	}
	if !sawCommon {
		return nil, fmt.Errorf("load: font data has no common header line")
	}
	return data, nil
}
