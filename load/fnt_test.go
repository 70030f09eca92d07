// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package load

import (
	"strings"
	"testing"
)

const lucidiaFnt = `info face="lucidia" size=16
common lineHeight=18 base=14 scaleW=256 scaleH=256 pages=1 packed=0 alphaChnl=1 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="lucidiaSu16.png"
chars count=2
char id=65 x=0 y=0 width=10 height=14 xoffset=0 yoffset=2 xadvance=11 page=0 chnl=15
char id=66 x=10 y=0 width=9 height=14 xoffset=0 yoffset=2 xadvance=10 page=0 chnl=15
`

func TestLoadFnt(t *testing.T) {
	d, err := Fnt(strings.NewReader(lucidiaFnt))
	if err != nil {
		t.Fatalf("could not load glyphs: %s", err)
	}
	if d.W != 256 || d.H != 256 || len(d.Glyphs) != 2 {
		t.Errorf("invalid font data: %d %d %d", d.W, d.H, len(d.Glyphs))
	}
	if d.Glyphs[0].Char != 'A' || d.Glyphs[1].Char != 'B' {
		t.Errorf("invalid character codes: %c %c", d.Glyphs[0].Char, d.Glyphs[1].Char)
	}
	if d.Glyphs[0].W != 10 || d.Glyphs[0].Xa != 11 {
		t.Errorf("glyph cell/advance = %d/%d, want 10/11", d.Glyphs[0].W, d.Glyphs[0].Xa)
	}
}

func TestLoadFntRequiresCommonHeader(t *testing.T) {
	if _, err := Fnt(strings.NewReader("info face=\"x\" size=16\n")); err == nil {
		t.Fatal("expected an error for font data with no common line")
	}
}
