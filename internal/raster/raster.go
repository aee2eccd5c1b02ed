package raster

import (
	"fmt"
	"image"
	"image/color"
)

// MaxBands is the number of bands kept from a source image. Satellite chips
// are read as their first three bands; alpha is dropped.
const MaxBands = 3

// Raster is a georeferenced multi-band pixel array stored band by band
// (channels x height x width). Samples are held as uint16 whatever the
// source depth; BitDepth records whether the file used 8 or 16 bits so the
// output can be written back with the same encoding.
type Raster struct {
	Width     int
	Height    int
	Channels  int
	BitDepth  int
	Bands     [][]uint16
	Transform Affine

	// GeoKeys carries the source GeoTIFF key directory so it can be written
	// back unchanged. Nil when the source had none.
	GeoKeys *GeoKeys
}

// New allocates a zeroed raster.
func New(width, height, channels, bitDepth int, t Affine) *Raster {
	bands := make([][]uint16, channels)
	for c := range bands {
		bands[c] = make([]uint16, width*height)
	}
	return &Raster{
		Width:     width,
		Height:    height,
		Channels:  channels,
		BitDepth:  bitDepth,
		Bands:     bands,
		Transform: t,
	}
}

// Validate checks that the band layout matches the declared shape.
func (r *Raster) Validate() error {
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("negative raster size %dx%d", r.Width, r.Height)
	}
	if r.BitDepth != 8 && r.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth %d", r.BitDepth)
	}
	if len(r.Bands) != r.Channels {
		return fmt.Errorf("raster declares %d channels but holds %d bands", r.Channels, len(r.Bands))
	}
	for c, b := range r.Bands {
		if len(b) != r.Width*r.Height {
			return fmt.Errorf("band %d has %d samples, want %d", c, len(b), r.Width*r.Height)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := *r
	out.Bands = make([][]uint16, len(r.Bands))
	for c, b := range r.Bands {
		out.Bands[c] = append([]uint16(nil), b...)
	}
	if r.GeoKeys != nil {
		gk := r.GeoKeys.clone()
		out.GeoKeys = &gk
	}
	return &out
}

// At returns the sample of band c at pixel (x, y).
func (r *Raster) At(c, x, y int) uint16 {
	return r.Bands[c][y*r.Width+x]
}

// FromImage converts a decoded image into a Raster with up to MaxBands bands.
//
// Gray images become one band. Colour images become three bands (R, G, B);
// alpha is discarded. 16-bit sources keep their full sample values.
func FromImage(img image.Image, t Affine) (*Raster, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		r := New(w, h, 1, 8, t)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Bands[0][y*w+x] = uint16(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil

	case *image.Gray16:
		r := New(w, h, 1, 16, t)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Bands[0][y*w+x] = src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
		return r, nil

	case *image.RGBA:
		r := New(w, h, MaxBands, 8, t)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				for c := 0; c < MaxBands; c++ {
					r.Bands[c][y*w+x] = uint16(src.Pix[i+c])
				}
			}
		}
		return r, nil

	case *image.NRGBA:
		r := New(w, h, MaxBands, 8, t)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				for c := 0; c < MaxBands; c++ {
					r.Bands[c][y*w+x] = uint16(src.Pix[i+c])
				}
			}
		}
		return r, nil

	case *image.RGBA64:
		r := New(w, h, MaxBands, 16, t)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				for c := 0; c < MaxBands; c++ {
					r.Bands[c][y*w+x] = uint16(src.Pix[i+2*c])<<8 | uint16(src.Pix[i+2*c+1])
				}
			}
		}
		return r, nil

	case *image.NRGBA64:
		r := New(w, h, MaxBands, 16, t)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				for c := 0; c < MaxBands; c++ {
					r.Bands[c][y*w+x] = uint16(src.Pix[i+2*c])<<8 | uint16(src.Pix[i+2*c+1])
				}
			}
		}
		return r, nil
	}

	// Paletted and anything else: go through the colour model.
	r := New(w, h, MaxBands, 8, t)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r.Bands[0][y*w+x] = uint16(c.R)
			r.Bands[1][y*w+x] = uint16(c.G)
			r.Bands[2][y*w+x] = uint16(c.B)
		}
	}
	return r, nil
}

// Image renders the raster as an image.Image for previews and overlays.
// One band renders as gray; three or more render the first three as RGB.
func (r *Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)

	switch {
	case r.Channels == 1 && r.BitDepth == 8:
		img := image.NewGray(rect)
		for i, v := range r.Bands[0] {
			img.Pix[i] = uint8(v)
		}
		return img, nil

	case r.Channels == 1:
		img := image.NewGray16(rect)
		for i, v := range r.Bands[0] {
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img, nil

	case r.Channels >= 3 && r.BitDepth == 8:
		img := image.NewNRGBA(rect)
		for i := 0; i < r.Width*r.Height; i++ {
			img.Pix[4*i] = uint8(r.Bands[0][i])
			img.Pix[4*i+1] = uint8(r.Bands[1][i])
			img.Pix[4*i+2] = uint8(r.Bands[2][i])
			img.Pix[4*i+3] = 0xff
		}
		return img, nil

	case r.Channels >= 3:
		img := image.NewNRGBA64(rect)
		for i := 0; i < r.Width*r.Height; i++ {
			for c := 0; c < 3; c++ {
				v := r.Bands[c][i]
				img.Pix[8*i+2*c] = uint8(v >> 8)
				img.Pix[8*i+2*c+1] = uint8(v)
			}
			img.Pix[8*i+6] = 0xff
			img.Pix[8*i+7] = 0xff
		}
		return img, nil
	}

	return nil, fmt.Errorf("cannot render a %d-band raster", r.Channels)
}
