// Package pipeline runs the masking stages for one image at a time and
// batches of images in parallel.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/coastline"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/metrics"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/overpass"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/raster"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/region"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/storage"
)

// Stage names used for timing metrics and log lines.
const (
	StageLoadRaster = "load_raster"
	StageLoadRegion = "load_region"
	StageFetch      = "fetch_coastline"
	StageClose      = "close"
	StageAssemble   = "assemble"
	StageRasterize  = "rasterize"
	StageApply      = "apply"
	StagePersist    = "persist"
)

// RasterLoader returns the decoded raster stored at a URI. Implementations
// may share the returned raster between calls; Process never mutates it.
type RasterLoader interface {
	LoadRaster(ctx context.Context, uri string) (*raster.Raster, error)
}

// RasterLoaderFunc adapts a function to RasterLoader.
type RasterLoaderFunc func(ctx context.Context, uri string) (*raster.Raster, error)

func (f RasterLoaderFunc) LoadRaster(ctx context.Context, uri string) (*raster.Raster, error) {
	return f(ctx, uri)
}

// CoastlineFetcher returns the coastline lines intersecting a polygon.
type CoastlineFetcher interface {
	FetchCoastline(ctx context.Context, poly orb.Polygon) (coastline.Collection, error)
}

// Options selects the side of the coastline to suppress and how it is
// resolved. WantLand zeroes the land, WantMaritime the sea.
type Options struct {
	WantLand           bool
	WantMaritime       bool
	Policy             coastline.Policy
	ReferenceLongitude float64

	OverlayColor   string
	OverlayOpacity float64
}

// DefaultOptions suppresses land under the land-flag policy.
func DefaultOptions() Options {
	return Options{
		WantLand:           true,
		Policy:             coastline.PolicyLandFlag,
		ReferenceLongitude: region.DefaultReferenceLongitude,
		OverlayColor:       raster.DefaultOverlayColor,
		OverlayOpacity:     0.4,
	}
}

// Job describes one image to mask.
type Job struct {
	ID        string `json:"id,omitempty"`
	ImageURI  string `json:"image"`
	RegionURI string `json:"region"`
	// OutputURI is where the masked TIFF goes. Empty runs every stage but
	// persists nothing.
	OutputURI string `json:"output,omitempty"`
	// CoastlineURI points at an OSM XML extract used instead of querying
	// the fetcher.
	CoastlineURI string `json:"coastline,omitempty"`
	// OverlayPath receives a PNG of the suppressed pixels tinted over the
	// input.
	OverlayPath string `json:"overlay,omitempty"`

	// Per-job overrides of the processor's side flags.
	LandMask     *bool `json:"land_mask,omitempty"`
	MaritimeMask *bool `json:"maritime_mask,omitempty"`
}

// Result summarizes one processed image.
type Result struct {
	JobID       string                  `json:"job_id"`
	RegionID    string                  `json:"region_id"`
	IsEastCoast bool                    `json:"is_east_coast"`
	Side        string                  `json:"side"`
	EdgeX       float64                 `json:"edge_x"`
	Lines       int                     `json:"coastline_lines"`
	Polygons    int                     `json:"polygons"`
	Stats       *raster.MaskStatsResult `json:"stats"`
	OutputURI   string                  `json:"output,omitempty"`
	OverlayPath string                  `json:"overlay,omitempty"`
	Elapsed     time.Duration           `json:"elapsed_ns"`
	Edges       [3]orb.LineString       `json:"-"`
	Mask        *raster.Mask            `json:"-"`
	Masked      *raster.Raster          `json:"-"`
}

// Processor wires the stage implementations together.
type Processor struct {
	Rasters   RasterLoader
	Store     storage.Store
	Coastline CoastlineFetcher
	Options   Options
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// New returns a processor reading and writing through store. Rasters are
// decoded on every call; set Rasters to a *raster.RasterCache to share them.
func New(store storage.Store, fetcher CoastlineFetcher, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Rasters: RasterLoaderFunc(func(ctx context.Context, uri string) (*raster.Raster, error) {
			return raster.Load(ctx, store, uri)
		}),
		Store:     store,
		Coastline: fetcher,
		Options:   opts,
		Logger:    logger,
	}
}

func (p *Processor) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.Metrics.ObserveStage(stage, time.Since(start))
	return err
}

// Process runs every stage for job. Any stage failure aborts the image and
// is returned unchanged, so callers can match it with errors.Is.
func (p *Processor) Process(ctx context.Context, job Job) (*Result, error) {
	if err := ctx.Err(); err != nil {
		p.Metrics.ObserveImage(err)
		return nil, err
	}
	res, err := p.process(ctx, job)
	p.Metrics.ObserveImage(err)
	if err != nil {
		return nil, err
	}
	p.Metrics.ObserveMasked(res.Stats.MaskedPercent)
	return res, nil
}

func (p *Processor) process(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	log := p.Logger.With("job", job.ID, "image", job.ImageURI)

	wantLand, wantMaritime := p.Options.WantLand, p.Options.WantMaritime
	if job.LandMask != nil {
		wantLand = *job.LandMask
	}
	if job.MaritimeMask != nil {
		wantMaritime = *job.MaritimeMask
	}
	// Reject a bad flag combination before any I/O.
	if _, err := p.Options.Policy.Resolve(wantLand, wantMaritime); err != nil {
		return nil, err
	}

	var img *raster.Raster
	err := p.timed(StageLoadRaster, func() (err error) {
		img, err = p.Rasters.LoadRaster(ctx, job.ImageURI)
		return err
	})
	if err != nil {
		return nil, err
	}

	var reg *region.Region
	err = p.timed(StageLoadRegion, func() (err error) {
		reg, err = region.Load(ctx, p.Store, job.RegionURI)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.With("region", reg.ID)

	var trace coastline.Collection
	err = p.timed(StageFetch, func() (err error) {
		trace, err = p.fetch(ctx, job, reg)
		return err
	})
	if err != nil {
		return nil, err
	}
	fetched := trace.Len()
	trace = coastline.Clip(trace, reg.Bound)
	if trace.Len() == 0 {
		return nil, &maskerr.EmptyInputError{RegionID: reg.ID, Reason: fmt.Sprintf("no coastline features (%d before clipping)", fetched)}
	}

	east := reg.IsEastCoast(p.Options.ReferenceLongitude)
	var closure *coastline.Closure
	err = p.timed(StageClose, func() (err error) {
		closure, err = coastline.Close(trace.Lines, reg.Polygon, coastline.CloseOptions{
			IsEastCoast:  east,
			WantLand:     wantLand,
			WantMaritime: wantMaritime,
			Policy:       p.Options.Policy,
		})
		return err
	})
	if err != nil {
		var empty *maskerr.EmptyInputError
		if errors.As(err, &empty) && empty.RegionID == "" {
			empty.RegionID = reg.ID
		}
		return nil, err
	}
	log.Debug("closing edges",
		"east_coast", east,
		"side", closure.Side,
		"edge_x", closure.EdgeX,
		"wkt", wkt.MarshalString(orb.MultiLineString(closure.Edges[:])))

	var asm *coastline.Assembly
	err = p.timed(StageAssemble, func() (err error) {
		asm, err = coastline.Assemble(trace, closure, reg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The all-touched footprint of the enclosed side is the set to zero,
	// boundary pixels included.
	var mask *raster.Mask
	err = p.timed(StageRasterize, func() (err error) {
		mask, err = raster.Rasterize(ctx, asm.Polygons, img.Width, img.Height, img.Transform)
		return err
	})
	if err != nil {
		return nil, err
	}

	var out *raster.Raster
	err = p.timed(StageApply, func() (err error) {
		out, err = raster.ApplyMask(img, mask)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		JobID:       job.ID,
		RegionID:    reg.ID,
		IsEastCoast: east,
		Side:        closure.Side.String(),
		EdgeX:       closure.EdgeX,
		Lines:       trace.Len(),
		Polygons:    len(asm.Polygons),
		Stats:       raster.MaskStats(mask),
		Edges:       closure.Edges,
		Mask:        mask,
		Masked:      out,
	}

	// Overlay before output: a failed image must leave no output behind.
	if job.OverlayPath != "" {
		err = p.timed(StagePersist, func() error { return p.writeOverlay(ctx, job.OverlayPath, img, mask) })
		if err != nil {
			return nil, err
		}
		res.OverlayPath = job.OverlayPath
	}

	if job.OutputURI != "" {
		err = p.timed(StagePersist, func() error { return p.persist(ctx, job.OutputURI, out) })
		if err != nil {
			return nil, err
		}
		res.OutputURI = job.OutputURI
	}

	res.Elapsed = time.Since(start)
	log.Info("image masked",
		"side", res.Side,
		"polygons", res.Polygons,
		"masked_percent", res.Stats.MaskedPercent,
		"output", res.OutputURI,
		"elapsed", res.Elapsed)
	return res, nil
}

func (p *Processor) fetch(ctx context.Context, job Job, reg *region.Region) (coastline.Collection, error) {
	if job.CoastlineURI != "" {
		data, err := p.Store.ReadObject(ctx, job.CoastlineURI)
		if err != nil {
			return coastline.Collection{}, &maskerr.InputLoadError{Path: job.CoastlineURI, Err: err}
		}
		c, err := overpass.Parse(data)
		if err != nil {
			return coastline.Collection{}, &maskerr.InputLoadError{Path: job.CoastlineURI, Err: err}
		}
		return c, nil
	}
	if p.Coastline == nil {
		return coastline.Collection{}, &maskerr.ConfigError{Field: "coastline", Reason: "no coastline source configured"}
	}
	return p.Coastline.FetchCoastline(ctx, reg.Polygon)
}

func (p *Processor) writeOverlay(ctx context.Context, uri string, img *raster.Raster, mask *raster.Mask) error {
	ov, err := raster.Overlay(img, mask, p.Options.OverlayColor, p.Options.OverlayOpacity)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := raster.EncodeOverlay(&buf, ov); err != nil {
		return fmt.Errorf("encode overlay %s: %w", uri, err)
	}
	if err := p.Store.WriteObject(ctx, uri, buf.Bytes()); err != nil {
		return fmt.Errorf("write overlay %s: %w", uri, err)
	}
	return nil
}

func (p *Processor) persist(ctx context.Context, uri string, r *raster.Raster) error {
	var buf bytes.Buffer
	if err := raster.Encode(&buf, r); err != nil {
		return fmt.Errorf("encode %s: %w", uri, err)
	}
	if err := p.Store.WriteObject(ctx, uri, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	return nil
}
