// Package region loads the area-of-interest polygon a raster chip covers.
//
// Regions are read from GeoJSON: a FeatureCollection, a single Feature or a
// bare geometry. Only the first feature is used, and its geometry must be a
// Polygon or a MultiPolygon (whose first polygon is taken).
package region

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// DefaultCRS is assumed when the GeoJSON has no legacy "crs" member.
const DefaultCRS = "EPSG:4326"

// DefaultReferenceLongitude is the meridian that splits east and west
// coasts when no other value is configured.
const DefaultReferenceLongitude = 45.0792

// Region is the polygon delimiting one image chip.
type Region struct {
	ID      string      `json:"id"`
	Polygon orb.Polygon `json:"-"`
	Bound   orb.Bound   `json:"-"`
	CRS     string      `json:"crs"`
}

// ObjectReader fetches the bytes stored at a URI.
type ObjectReader interface {
	ReadObject(ctx context.Context, uri string) ([]byte, error)
}

// Load reads and parses the region at uri. The region ID defaults to the
// file name without extension. Every failure is an *maskerr.InputLoadError.
func Load(ctx context.Context, src ObjectReader, uri string) (*Region, error) {
	data, err := src.ReadObject(ctx, uri)
	if err != nil {
		return nil, &maskerr.InputLoadError{Path: uri, Err: err}
	}
	base := path.Base(uri)
	r, err := Parse(data, strings.TrimSuffix(base, path.Ext(base)))
	if err != nil {
		return nil, &maskerr.InputLoadError{Path: uri, Err: err}
	}
	return r, nil
}

type envelope struct {
	Type string `json:"type"`
	CRS  *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// Parse decodes GeoJSON into a Region. fallbackID is used when the feature
// carries neither an "id" member nor an "id" or "name" property.
func Parse(data []byte, fallbackID string) (*Region, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decode geojson")
	}

	var (
		geom orb.Geometry
		id   = fallbackID
	)
	switch env.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrap(err, "decode feature collection")
		}
		if len(fc.Features) == 0 {
			return nil, errors.New("feature collection has no features")
		}
		geom = fc.Features[0].Geometry
		id = featureID(fc.Features[0], id)

	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrap(err, "decode feature")
		}
		geom = f.Geometry
		id = featureID(f, id)

	case "":
		return nil, errors.New("geojson object has no type")

	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, errors.Wrap(err, "decode geometry")
		}
		geom = g.Geometry()
	}

	poly, err := firstPolygon(geom)
	if err != nil {
		return nil, err
	}

	crs := DefaultCRS
	if env.CRS != nil && env.CRS.Properties.Name != "" {
		crs = normalizeCRS(env.CRS.Properties.Name)
	}

	return &Region{ID: id, Polygon: poly, Bound: poly.Bound(), CRS: crs}, nil
}

func firstPolygon(g orb.Geometry) (orb.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) < 4 {
			return nil, errors.New("polygon has no valid outer ring")
		}
		return v, nil
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, errors.New("multipolygon is empty")
		}
		return firstPolygon(v[0])
	case nil:
		return nil, errors.New("feature has no geometry")
	}
	return nil, fmt.Errorf("unsupported region geometry %s", g.GeoJSONType())
}

func featureID(f *geojson.Feature, fallback string) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	for _, key := range []string{"id", "name"} {
		if s := f.Properties.MustString(key, ""); s != "" {
			return s
		}
	}
	return fallback
}

// normalizeCRS maps OGC URNs such as urn:ogc:def:crs:EPSG::32638 to
// EPSG:32638. CRS84 is treated as EPSG:4326.
func normalizeCRS(name string) string {
	if strings.HasSuffix(name, "CRS84") {
		return DefaultCRS
	}
	if i := strings.Index(name, "EPSG::"); i >= 0 {
		return "EPSG:" + name[i+len("EPSG::"):]
	}
	return name
}

// Centroid returns the area centroid of the region polygon.
func (r *Region) Centroid() orb.Point {
	c, _ := planar.CentroidArea(r.Polygon)
	return c
}

// IsEastCoast reports whether the region lies east of the reference
// meridian, judged by its centroid.
func (r *Region) IsEastCoast(referenceLongitude float64) bool {
	return r.Centroid()[0] > referenceLongitude
}
