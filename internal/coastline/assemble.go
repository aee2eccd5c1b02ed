package coastline

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// Assembly is the outcome of merging a trace with its closing edges.
type Assembly struct {
	Collection Collection
	Polygons   []orb.Polygon
}

// Assemble extends trace with the closure's edges and polygonizes the
// result. regionID is only used for error context.
//
// A polygonization without rings is a *maskerr.GeometryAssemblyError.
func Assemble(trace Collection, closure *Closure, regionID string) (*Assembly, error) {
	extended := trace.Extend(closure.Edges[:]...)
	polys := Polygonize(extended.Lines)

	if len(polys) == 0 {
		return nil, &maskerr.GeometryAssemblyError{
			RegionID:     regionID,
			Side:         closure.Side.String(),
			EdgeX:        closure.EdgeX,
			Lines:        trace.Len(),
			ClosingEdges: wkt.MarshalString(orb.MultiLineString(closure.Edges[:])),
		}
	}

	return &Assembly{Collection: extended, Polygons: polys}, nil
}
