package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Affine maps pixel coordinates (col, row) to projected coordinates (x, y):
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// (col, row) = (0, 0) is the outer top-left corner of the top-left pixel.
// The pixel centre is at (col+0.5, row+0.5).
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity is the transform where pixel and projected coordinates coincide.
var Identity = Affine{A: 1, E: 1}

// FromGDAL converts a GDAL geotransform (x0, dx, rx, y0, ry, dy) to Affine.
func FromGDAL(gt [6]float64) Affine {
	return Affine{A: gt[1], B: gt[2], C: gt[0], D: gt[4], E: gt[5], F: gt[3]}
}

// GDAL returns the transform in GDAL geotransform order.
func (t Affine) GDAL() [6]float64 {
	return [6]float64{t.C, t.A, t.B, t.F, t.D, t.E}
}

// Apply maps a pixel coordinate to a projected coordinate.
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// Determinant of the linear part.
func (t Affine) Determinant() float64 {
	return t.A*t.E - t.B*t.D
}

// Invert returns the transform mapping projected coordinates back to pixels.
func (t Affine) Invert() (Affine, error) {
	det := t.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, fmt.Errorf("affine transform %v is not invertible", t)
	}
	a := t.E / det
	b := -t.B / det
	d := -t.D / det
	e := t.A / det
	return Affine{
		A: a, B: b, C: -(a*t.C + b*t.F),
		D: d, E: e, F: -(d*t.C + e*t.F),
	}, nil
}

// Footprint returns the projected bound of a width x height grid.
func (t Affine) Footprint(width, height int) orb.Bound {
	w, h := float64(width), float64(height)
	var b orb.Bound
	for i, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := t.Apply(c[0], c[1])
		if i == 0 {
			b = orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x, y}}
			continue
		}
		b = b.Extend(orb.Point{x, y})
	}
	return b
}
