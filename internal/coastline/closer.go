package coastline

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// Side names the side of the coastline that the closed polygon encloses.
type Side int

const (
	// SideLand encloses the landward side of the trace.
	SideLand Side = iota
	// SideMaritime encloses the seaward side of the trace.
	SideMaritime
)

func (s Side) String() string {
	if s == SideMaritime {
		return "maritime"
	}
	return "land"
}

// Policy resolves the land and maritime flags into a Side.
type Policy int

const (
	// PolicyLandFlag encloses land when the land flag is set and sea
	// otherwise. The maritime flag is ignored.
	PolicyLandFlag Policy = iota
	// PolicyExplicit requires exactly one of the two flags and encloses
	// that side.
	PolicyExplicit
)

func (p Policy) String() string {
	if p == PolicyExplicit {
		return "explicit"
	}
	return "land-flag"
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "land-flag", "land_flag", "reference":
		return PolicyLandFlag, nil
	case "explicit":
		return PolicyExplicit, nil
	default:
		return 0, &maskerr.ConfigError{Field: "closing_policy", Reason: fmt.Sprintf("unknown policy %q", s)}
	}
}

// Resolve picks the side to enclose from the two mask flags.
func (p Policy) Resolve(wantLand, wantMaritime bool) (Side, error) {
	if p != PolicyExplicit {
		if wantLand {
			return SideLand, nil
		}
		return SideMaritime, nil
	}

	switch {
	case wantLand && !wantMaritime:
		return SideLand, nil
	case wantMaritime && !wantLand:
		return SideMaritime, nil
	case wantLand && wantMaritime:
		return 0, &maskerr.ConfigError{Field: "land_mask,maritime_mask", Reason: "both sides requested; the mask would cover the whole image"}
	default:
		return 0, &maskerr.ConfigError{Field: "land_mask,maritime_mask", Reason: "neither side requested"}
	}
}

// ChooseEdge returns the x coordinate of the bounding-box edge that closes
// the loop around the requested side.
func ChooseEdge(b orb.Bound, isEastCoast bool, side Side) float64 {
	if isEastCoast == (side == SideLand) {
		return b.Min[0]
	}
	return b.Max[0]
}

// Extremes holds the overall northmost and southmost vertices of a trace and
// the index of the line each came from.
type Extremes struct {
	North     orb.Point
	South     orb.Point
	NorthLine int
	SouthLine int
}

type candidate struct {
	pt   orb.Point
	line int
}

// FindExtremes selects the overall northmost (max Y) and southmost (min Y)
// vertices. Ties go to the earliest line and, within a line, the earliest
// vertex. Lines with fewer than two points are ignored.
func FindExtremes(lines []orb.LineString) (Extremes, error) {
	norths := make([]candidate, 0, len(lines))
	souths := make([]candidate, 0, len(lines))

	for i, l := range lines {
		if len(l) < 2 {
			continue
		}
		// Strict comparisons keep the first vertex on ties.
		norths = append(norths, candidate{
			pt:   lo.MaxBy(l, func(a, b orb.Point) bool { return a[1] > b[1] }),
			line: i,
		})
		souths = append(souths, candidate{
			pt:   lo.MinBy(l, func(a, b orb.Point) bool { return a[1] < b[1] }),
			line: i,
		})
	}

	if len(norths) == 0 {
		return Extremes{}, &maskerr.EmptyInputError{Reason: "no coastline line with at least two points"}
	}

	north := lo.MaxBy(norths, func(a, b candidate) bool { return a.pt[1] > b.pt[1] })
	south := lo.MinBy(souths, func(a, b candidate) bool { return a.pt[1] < b.pt[1] })

	return Extremes{
		North:     north.pt,
		South:     south.pt,
		NorthLine: north.line,
		SouthLine: south.line,
	}, nil
}

// CloseOptions configures Close.
type CloseOptions struct {
	IsEastCoast  bool
	WantLand     bool
	WantMaritime bool
	Policy       Policy
}

// Closure is the result of closing a trace.
type Closure struct {
	Edges    [3]orb.LineString
	EdgeX    float64
	Side     Side
	Extremes Extremes
}

// Close computes the three closing edges for lines inside regionPolygon.
//
// The edges form an open "C": north vertex to the chosen bounding-box edge,
// along that edge to the south vertex's latitude, and back to the south
// vertex. Appended to the trace they close a loop around the requested side.
func Close(lines []orb.LineString, regionPolygon orb.Polygon, opts CloseOptions) (*Closure, error) {
	side, err := opts.Policy.Resolve(opts.WantLand, opts.WantMaritime)
	if err != nil {
		return nil, err
	}

	ext, err := FindExtremes(lines)
	if err != nil {
		return nil, err
	}

	edgeX := ChooseEdge(regionPolygon.Bound(), opts.IsEastCoast, side)
	north, south := ext.North, ext.South

	return &Closure{
		Edges: [3]orb.LineString{
			{north, {edgeX, north[1]}},
			{{edgeX, north[1]}, {edgeX, south[1]}},
			{{edgeX, south[1]}, south},
		},
		EdgeX:    edgeX,
		Side:     side,
		Extremes: ext,
	}, nil
}

// ClosingEdges returns the three closing edges using the land-flag policy.
func ClosingEdges(lines []orb.LineString, regionPolygon orb.Polygon, isEastCoast, wantLand, wantMaritime bool) ([3]orb.LineString, error) {
	c, err := Close(lines, regionPolygon, CloseOptions{
		IsEastCoast:  isEastCoast,
		WantLand:     wantLand,
		WantMaritime: wantMaritime,
		Policy:       PolicyLandFlag,
	})
	if err != nil {
		return [3]orb.LineString{}, err
	}
	return c.Edges, nil
}
