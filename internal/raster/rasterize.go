package raster

import (
	"context"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// Rasterize burns polygons into a width x height mask with the all-touched
// rule: a pixel is true when its footprint intersects any polygon.
//
// Coverage is the union of two passes in pixel space. A scanline pass marks
// pixels whose centre lies inside the polygon (even-odd over all rings, so
// holes are respected). A boundary pass marks every pixel that a ring edge
// passes through.
//
// The context is checked between polygons.
func Rasterize(ctx context.Context, polygons []orb.Polygon, width, height int, t Affine) (*Mask, error) {
	if width < 0 || height < 0 {
		return nil, &maskerr.RasterizationError{Reason: "negative grid size"}
	}
	inv, err := t.Invert()
	if err != nil {
		return nil, &maskerr.RasterizationError{Reason: "singular transform", Err: err}
	}

	m := NewMask(width, height)
	if width == 0 || height == 0 {
		return m, nil
	}

	for _, poly := range polygons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rings := toPixelSpace(poly, inv)
		fillInterior(m, rings)
		for _, ring := range rings {
			for i := 0; i+1 < len(ring); i++ {
				traceSegment(m, ring[i], ring[i+1])
			}
		}
	}
	return m, nil
}

func toPixelSpace(poly orb.Polygon, inv Affine) []orb.Ring {
	rings := make([]orb.Ring, 0, len(poly))
	for _, r := range poly {
		if len(r) < 2 {
			continue
		}
		pr := make(orb.Ring, 0, len(r)+1)
		for _, p := range r {
			col, row := inv.Apply(p[0], p[1])
			pr = append(pr, orb.Point{col, row})
		}
		if pr[0] != pr[len(pr)-1] {
			pr = append(pr, pr[0])
		}
		rings = append(rings, pr)
	}
	return rings
}

// fillInterior marks pixels whose centre is inside the rings (even-odd).
func fillInterior(m *Mask, rings []orb.Ring) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, r := range rings {
		for _, p := range r {
			minY = math.Min(minY, p[1])
			maxY = math.Max(maxY, p[1])
		}
	}
	rowStart := clampInt(int(math.Floor(minY-0.5)), 0, m.Height)
	rowEnd := clampInt(int(math.Ceil(maxY-0.5))+1, 0, m.Height)

	var xs []float64
	for row := rowStart; row < rowEnd; row++ {
		yc := float64(row) + 0.5
		xs = xs[:0]
		for _, r := range rings {
			for i := 0; i+1 < len(r); i++ {
				p, q := r[i], r[i+1]
				if (p[1] <= yc) == (q[1] <= yc) {
					continue
				}
				xs = append(xs, p[0]+(yc-p[1])*(q[0]-p[0])/(q[1]-p[1]))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			// centres c+0.5 in [x0, x1)
			c0 := clampInt(int(math.Ceil(xs[i]-0.5)), 0, m.Width)
			c1 := clampInt(int(math.Ceil(xs[i+1]-0.5)), 0, m.Width)
			for c := c0; c < c1; c++ {
				m.Bits[row*m.Width+c] = true
			}
		}
	}
}

// traceSegment marks every cell the segment p-q passes through, walking the
// grid one cell boundary at a time.
func traceSegment(m *Mask, p, q orb.Point) {
	var ok bool
	p, q, ok = clipToGrid(p, q, float64(m.Width), float64(m.Height))
	if !ok {
		return
	}

	x, y := int(math.Floor(p[0])), int(math.Floor(p[1]))
	ex, ey := int(math.Floor(q[0])), int(math.Floor(q[1]))
	dx, dy := q[0]-p[0], q[1]-p[1]

	stepX, tMaxX, tDeltaX := walkAxis(p[0], dx)
	stepY, tMaxY, tDeltaY := walkAxis(p[1], dy)

	m.Set(x, y, true)
	n := absInt(ex-x) + absInt(ey-y)
	for i := 0; i < n; {
		switch {
		case tMaxX == tMaxY && i+1 < n:
			// Through a grid corner: the two cells that only share the
			// corner point are not touched.
			x += stepX
			y += stepY
			tMaxX += tDeltaX
			tMaxY += tDeltaY
			i += 2
		case tMaxX < tMaxY:
			x += stepX
			tMaxX += tDeltaX
			i++
		default:
			y += stepY
			tMaxY += tDeltaY
			i++
		}
		m.Set(x, y, true)
	}
}

func walkAxis(start, delta float64) (step int, tMax, tDelta float64) {
	switch {
	case delta > 0:
		return 1, (math.Floor(start) + 1 - start) / delta, 1 / delta
	case delta < 0:
		return -1, (start - math.Floor(start)) / -delta, 1 / -delta
	}
	return 0, math.Inf(1), math.Inf(1)
}

// clipToGrid clips the segment to the grid expanded by one cell on every
// side (Liang-Barsky), bounding the walk for segments far outside the grid.
func clipToGrid(p, q orb.Point, w, h float64) (orb.Point, orb.Point, bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := q[0]-p[0], q[1]-p[1]
	edges := [4][2]float64{
		{-dx, p[0] + 1},
		{dx, w + 1 - p[0]},
		{-dy, p[1] + 1},
		{dy, h + 1 - p[1]},
	}
	for _, e := range edges {
		pe, qe := e[0], e[1]
		if pe == 0 {
			if qe < 0 {
				return p, q, false
			}
			continue
		}
		r := qe / pe
		if pe < 0 {
			if r > t1 {
				return p, q, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return p, q, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	a := p
	b := q
	if t0 > 0 {
		a = orb.Point{p[0] + t0*dx, p[1] + t0*dy}
	}
	if t1 < 1 {
		b = orb.Point{p[0] + t1*dx, p[1] + t1*dy}
	}
	return a, b, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
