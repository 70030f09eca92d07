// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package load

import (
	"fmt"
	"image/png"
	"io"
)

// Png decodes a PNG image into d. The Reader r is expected to be opened
// and closed by the caller.
func Png(r io.Reader, d *ImgData) error {
	img, err := png.Decode(r)
	if err != nil {
		return fmt.Errorf("load: decode png: %w", err)
	}
	d.Img = img
	return nil
}
