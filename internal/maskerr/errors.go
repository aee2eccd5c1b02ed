// Package maskerr defines the error kinds surfaced by the masking pipeline.
//
// Every kind is a struct carrying diagnostic context and the underlying
// cause. Each one matches its sentinel through errors.Is, so callers can
// branch on the kind without a type assertion:
//
//	if errors.Is(err, maskerr.ErrEmptyInput) {
//	    // skip this image, keep the batch going
//	}
package maskerr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching.
var (
	ErrInputLoad        = errors.New("input load failed")
	ErrEmptyInput       = errors.New("empty input")
	ErrGeometryAssembly = errors.New("geometry assembly failed")
	ErrRasterization    = errors.New("rasterization failed")
	ErrConfig           = errors.New("invalid configuration")
)

// InputLoadError reports a missing or corrupt raster or vector file, or a
// vector layer without features.
type InputLoadError struct {
	Path string
	Err  error
}

func (e *InputLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %v", e.Path, ErrInputLoad)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *InputLoadError) Unwrap() error { return e.Err }

func (e *InputLoadError) Is(target error) bool { return target == ErrInputLoad }

// EmptyInputError reports a coastline query that produced no usable line
// features for a region.
type EmptyInputError struct {
	RegionID string
	Reason   string
}

func (e *EmptyInputError) Error() string {
	msg := "no coastline features"
	if e.Reason != "" {
		msg = e.Reason
	}
	if e.RegionID == "" {
		return msg
	}
	return fmt.Sprintf("region %s: %s", e.RegionID, msg)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// GeometryAssemblyError reports a polygonization that yielded no closed
// ring. It keeps the closing-edge choice so a bad edge selection can be
// diagnosed from the log line alone.
type GeometryAssemblyError struct {
	RegionID     string
	Side         string
	EdgeX        float64
	Lines        int
	ClosingEdges string // WKT
}

func (e *GeometryAssemblyError) Error() string {
	return fmt.Sprintf("region %s: polygonize produced no rings (side=%s edge_x=%g lines=%d closing=%s)",
		e.RegionID, e.Side, e.EdgeX, e.Lines, e.ClosingEdges)
}

func (e *GeometryAssemblyError) Is(target error) bool { return target == ErrGeometryAssembly }

// RasterizationError reports a transform or grid that cannot be used to
// rasterize, such as a singular affine transform or a mask/raster shape
// mismatch.
type RasterizationError struct {
	Reason string
	Err    error
}

func (e *RasterizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rasterize: %s: %v", e.Reason, e.Err)
	}
	return "rasterize: " + e.Reason
}

func (e *RasterizationError) Unwrap() error { return e.Err }

func (e *RasterizationError) Is(target error) bool { return target == ErrRasterization }

// ConfigError reports an inconsistent flag or option combination.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
