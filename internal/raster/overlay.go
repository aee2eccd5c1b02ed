package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultOverlayColor is used when no tint is configured.
const DefaultOverlayColor = "#ff0000"

// Overlay tints the pixels selected by m (the suppressed ones) over a
// rendering of r, for visual checks of the mask. opacity is in [0, 1].
func Overlay(r *Raster, m *Mask, tintHex string, opacity float64) (*image.RGBA, error) {
	if m.Width != r.Width || m.Height != r.Height {
		return nil, fmt.Errorf("overlay: mask %dx%d does not match raster %dx%d",
			m.Width, m.Height, r.Width, r.Height)
	}
	if opacity < 0 || opacity > 1 {
		return nil, fmt.Errorf("overlay: opacity %g outside [0, 1]", opacity)
	}

	tint, err := parseTint(tintHex)
	if err != nil {
		return nil, err
	}
	tint.A = uint8(opacity*255 + 0.5)

	base, err := r.Image()
	if err != nil {
		return nil, err
	}

	layer := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Bits[y*m.Width+x] {
				layer.SetNRGBA(x, y, tint)
			}
		}
	}

	return blend.Normal(base, layer), nil
}

// EncodeOverlay writes an overlay image to w as PNG.
func EncodeOverlay(w io.Writer, img image.Image) error {
	if err := imgio.PNGEncoder()(w, img); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

func parseTint(hex string) (color.NRGBA, error) {
	if hex == "" {
		hex = DefaultOverlayColor
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("overlay: invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
