package raster

import (
	"image"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// Mask is a boolean grid aligned with a raster, stored row-major.
// True marks a pixel to be zeroed by ApplyMask.
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// At reports the value at (x, y). Out-of-range coordinates read as false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Set writes the value at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Bits[y*m.Width+x] = v
}

// Invert flips every value in place.
func (m *Mask) Invert() {
	for i, v := range m.Bits {
		m.Bits[i] = !v
	}
}

// Count returns the number of true values.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Bits {
		if v {
			n++
		}
	}
	return n
}

// Equal reports whether two masks have the same shape and values.
func (m *Mask) Equal(o *Mask) bool {
	if m.Width != o.Width || m.Height != o.Height || len(m.Bits) != len(o.Bits) {
		return false
	}
	for i := range m.Bits {
		if m.Bits[i] != o.Bits[i] {
			return false
		}
	}
	return true
}

// Image renders the mask as gray, 255 where true.
func (m *Mask) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Bits {
		if v {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// ApplyMask returns a copy of r with every band zeroed where m is true.
// The mask broadcasts across bands; shape, band count and bit depth are
// preserved and r is left untouched.
func ApplyMask(r *Raster, m *Mask) (*Raster, error) {
	if err := checkShape(r, m); err != nil {
		return nil, err
	}
	out := r.Clone()
	if err := ApplyMaskInPlace(out, m); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyMaskInPlace zeroes every band of r where m is true.
func ApplyMaskInPlace(r *Raster, m *Mask) error {
	if err := checkShape(r, m); err != nil {
		return err
	}
	for i, masked := range m.Bits {
		if !masked {
			continue
		}
		for c := range r.Bands {
			r.Bands[c][i] = 0
		}
	}
	return nil
}

func checkShape(r *Raster, m *Mask) error {
	if err := r.Validate(); err != nil {
		return &maskerr.RasterizationError{Reason: "invalid raster", Err: err}
	}
	if m.Width != r.Width || m.Height != r.Height || len(m.Bits) != r.Width*r.Height {
		return &maskerr.RasterizationError{Reason: "mask shape does not match raster"}
	}
	return nil
}
