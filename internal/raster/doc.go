// Package raster holds georeferenced raster chips and the masking operations
// applied to them.
//
// A Raster stores its samples band by band and carries an Affine transform
// from pixel to model coordinates. A Mask is a boolean grid of the same
// width and height; true marks a pixel to suppress.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y downward. The transform maps the outer corner
// of a pixel; the centre of pixel (col, row) is at (col+0.5, row+0.5).
// Model coordinates are whatever the transform produces, usually projected
// or geographic (lon, lat) with Y increasing northward.
//
// # Masking
//
// Rasterize burns the polygons enclosing the side to suppress with the
// all-touched rule, so every pixel the polygon touches is set. ApplyMask
// then zeroes every band where the mask is true:
//
//	m, err := raster.Rasterize(ctx, polygons, r.Width, r.Height, r.Transform)
//	if err != nil {
//	    return err
//	}
//	out, err := raster.ApplyMask(r, m)
//
// Mask.Invert flips a mask when the polygon encloses the side to keep.
//
// # File Formats
//
// Input is TIFF, 8 or 16 bits per sample, gray or RGB(A). Only the first
// three bands are kept. Georeferencing is read from the GeoTIFF
// ModelTransformation or ModelPixelScale and ModelTiepoint tags, with an
// ESRI world file as fallback. Encode writes a Deflate-compressed TIFF with
// the same shape and bit depth, plus GeoTIFF tags for the transform.
//
// # Thread Safety
//
// RasterCache is safe for concurrent use. Rasters and masks are plain
// values; callers that share one across goroutines must not mutate it.
package raster
