// Package coastline turns an open coastline trace into closed polygons.
//
// Coastline traces pulled from a map database rarely form a closed ring
// inside an image footprint: they enter the footprint on one side and leave
// on another. This package closes such a trace with three synthetic edges
// anchored to the footprint's bounding box and then polygonizes the result.
//
// # Pipeline
//
//  1. Clip: restrict the trace to the region bound (Clip).
//  2. Close: find the overall northmost and southmost vertices and join them
//     to the west or east bounding-box edge with an open "C" of three
//     segments (Close, ClosingEdges).
//  3. Extend: build a new Collection holding trace and closing edges
//     (Collection.Extend). The input collection is never modified.
//  4. Polygonize: planar subdivision of all segments into maximal simple
//     polygons (Polygonize). Assemble wraps steps 3 and 4 and reports an
//     empty result as a geometry assembly error.
//
// # Coordinate System
//
// Points are orb.Point values in the projected coordinate system shared by
// the region and the raster: X grows eastward, Y grows northward. "North"
// always means larger Y.
//
// # Edge Selection
//
// Which bounding-box edge closes the loop depends on which side of the
// landmass the tile sits and which side should be enclosed:
//
//	east coast, enclose land -> west edge (min X)
//	east coast, enclose sea  -> east edge (max X)
//	west coast, enclose land -> east edge (max X)
//	west coast, enclose sea  -> west edge (min X)
//
// The enclosed side is resolved from the land and maritime flags by a
// Policy. PolicyLandFlag looks only at the land flag. PolicyExplicit
// requires exactly one of the two flags.
//
// # Determinism
//
// Ties between equally northern (or southern) vertices are broken by input
// order: the earliest line, then the earliest vertex within it, wins.
package coastline
