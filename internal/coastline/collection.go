package coastline

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// CRSWGS84 is the CRS tag used for features returned by OpenStreetMap.
const CRSWGS84 = "EPSG:4326"

// Collection is a set of line features sharing one coordinate reference
// system. It is treated as an immutable value: Extend and Clip return new
// collections and leave the receiver untouched.
type Collection struct {
	CRS   string           `json:"crs"`
	Lines []orb.LineString `json:"lines"`
}

// NewCollection copies lines into a new Collection.
func NewCollection(crs string, lines []orb.LineString) Collection {
	out := make([]orb.LineString, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Clone())
	}
	return Collection{CRS: crs, Lines: out}
}

// Len returns the number of line features.
func (c Collection) Len() int { return len(c.Lines) }

// Extend returns a new collection holding c's lines followed by extra.
// The receiver's backing array is never shared with the result, so the same
// trace can be extended for the land and the maritime side independently.
func (c Collection) Extend(extra ...orb.LineString) Collection {
	lines := make([]orb.LineString, 0, len(c.Lines)+len(extra))
	lines = append(lines, c.Lines...)
	for _, l := range extra {
		lines = append(lines, l.Clone())
	}
	return Collection{CRS: c.CRS, Lines: lines}
}

// MultiLineString returns the lines as a single orb geometry.
func (c Collection) MultiLineString() orb.MultiLineString {
	return orb.MultiLineString(c.Lines)
}

// Clip restricts every line to the bound b. Lines that leave and re-enter
// the bound are split into several lines; pieces shorter than two points
// are dropped.
func Clip(c Collection, b orb.Bound) Collection {
	// clip uses its input as scratch space.
	clipped := clip.MultiLineString(b, c.MultiLineString().Clone())

	lines := make([]orb.LineString, 0, len(clipped))
	for _, l := range clipped {
		if len(l) < 2 {
			continue
		}
		lines = append(lines, l)
	}
	return Collection{CRS: c.CRS, Lines: lines}
}
