package raster

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// ObjectReader fetches the bytes stored at a URI (a local path or an
// s3://bucket/key location). IsNotFoundError tells an absent object apart
// from a failed read.
type ObjectReader interface {
	ReadObject(ctx context.Context, uri string) ([]byte, error)
	IsNotFoundError(err error) bool
}

var errNoGeoref = errors.New("no georeferencing: missing GeoTIFF transform tags and world file")

// Decode decodes a TIFF and reads its GeoTIFF georeferencing. georeferenced
// is false when the file carries no transform; the returned raster then has
// the Identity transform.
func Decode(data []byte) (r *Raster, georeferenced bool, err error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, errors.Wrap(err, "decode tiff")
	}

	t, keys, ok, err := readGeoref(data)
	if err != nil {
		return nil, false, errors.Wrap(err, "read geotiff tags")
	}
	if !ok {
		t = Identity
	}

	r, err = FromImage(img, t)
	if err != nil {
		return nil, false, err
	}
	r.GeoKeys = keys
	return r, ok, nil
}

// Load reads a georeferenced raster from src. The transform comes from the
// GeoTIFF tags or, failing that, from a world file next to the image.
// Every failure is an *maskerr.InputLoadError.
func Load(ctx context.Context, src ObjectReader, uri string) (*Raster, error) {
	r, _, err := load(ctx, src, uri)
	return r, err
}

func load(ctx context.Context, src ObjectReader, uri string) (*Raster, int, error) {
	data, err := src.ReadObject(ctx, uri)
	if err != nil {
		return nil, 0, &maskerr.InputLoadError{Path: uri, Err: err}
	}

	r, ok, err := Decode(data)
	if err != nil {
		return nil, 0, &maskerr.InputLoadError{Path: uri, Err: err}
	}
	if ok {
		return r, len(data), nil
	}

	for _, sidecar := range WorldFileCandidates(uri) {
		wf, err := src.ReadObject(ctx, sidecar)
		if src.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, 0, &maskerr.InputLoadError{Path: sidecar, Err: err}
		}
		t, err := ParseWorldFile(wf)
		if err != nil {
			return nil, 0, &maskerr.InputLoadError{Path: sidecar, Err: err}
		}
		r.Transform = t
		return r, len(data), nil
	}
	return nil, 0, &maskerr.InputLoadError{Path: uri, Err: errNoGeoref}
}

type cacheEntry struct {
	raster *Raster
	size   int
}

// RasterCache provides thread-safe caching of decoded rasters to avoid
// redundant reads.
//
// Cached rasters are shared between callers and must be treated as
// read-only; use ApplyMask, which copies, rather than ApplyMaskInPlace on a
// cached raster.
//
// Cached rasters remain in memory until removed via Evict or Clear.
type RasterCache struct {
	src ObjectReader

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewRasterCache creates an empty cache reading through src.
func NewRasterCache(src ObjectReader) *RasterCache {
	return &RasterCache{
		src:     src,
		entries: make(map[string]cacheEntry),
	}
}

// Load retrieves a raster from the cache or reads it through the source.
//
// The raster is cached under the exact URI string provided. Different
// spellings of the same file are separate entries.
func (c *RasterCache) Load(ctx context.Context, uri string) (*Raster, error) {
	e, err := c.load(ctx, uri)
	if err != nil {
		return nil, err
	}
	return e.raster, nil
}

// LoadRaster satisfies the pipeline's raster loader interface.
func (c *RasterCache) LoadRaster(ctx context.Context, uri string) (*Raster, error) {
	return c.Load(ctx, uri)
}

func (c *RasterCache) load(ctx context.Context, uri string) (cacheEntry, error) {
	c.mu.RLock()
	if e, ok := c.entries[uri]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	r, size, err := load(ctx, c.src, uri)
	if err != nil {
		return cacheEntry{}, err
	}

	e := cacheEntry{raster: r, size: size}
	c.mu.Lock()
	c.entries[uri] = e
	c.mu.Unlock()

	return e, nil
}

// Clear removes all rasters from the cache.
func (c *RasterCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Evict removes a single raster from the cache. Unknown URIs are ignored.
func (c *RasterCache) Evict(uri string) {
	c.mu.Lock()
	delete(c.entries, uri)
	c.mu.Unlock()
}

// RasterInfo contains metadata about a raster file.
type RasterInfo struct {
	// Width is the raster width in pixels.
	Width int `json:"width"`

	// Height is the raster height in pixels.
	Height int `json:"height"`

	// Bands is the number of bands kept (at most MaxBands).
	Bands int `json:"bands"`

	// ColorDepth is "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// Transform is the pixel-to-model affine transform in GDAL order
	// (x0, dx, rx, y0, ry, dy).
	Transform [6]float64 `json:"transform"`

	// Bound is the model-space footprint as [minX, minY, maxX, maxY].
	Bound [4]float64 `json:"bound"`

	// HasGeoKeys reports whether the file carried a GeoTIFF key directory.
	HasGeoKeys bool `json:"has_geo_keys"`

	// FileSizeBytes is the size of the encoded file.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadRasterInfo loads a raster through the cache and describes it.
func LoadRasterInfo(ctx context.Context, cache *RasterCache, uri string) (*RasterInfo, error) {
	e, err := cache.load(ctx, uri)
	if err != nil {
		return nil, err
	}
	return describe(e.raster, e.size), nil
}

func describe(r *Raster, size int) *RasterInfo {
	b := r.Bound()
	return &RasterInfo{
		Width:         r.Width,
		Height:        r.Height,
		Bands:         r.Channels,
		ColorDepth:    fmt.Sprintf("%d-bit", r.BitDepth),
		Transform:     r.Transform.GDAL(),
		Bound:         [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		HasGeoKeys:    r.GeoKeys != nil,
		FileSizeBytes: int64(size),
	}
}

// Bound returns the model-space footprint of the raster.
func (r *Raster) Bound() orb.Bound {
	return r.Transform.Footprint(r.Width, r.Height)
}
