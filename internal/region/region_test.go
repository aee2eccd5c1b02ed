package region

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/paulmach/orb"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

type mapReader map[string][]byte

func (m mapReader) ReadObject(_ context.Context, uri string) ([]byte, error) {
	data, ok := m[uri]
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, os.ErrNotExist)
	}
	return data, nil
}

const squareFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "poti-harbour"},
      "geometry": {"type": "Polygon", "coordinates": [[[41.6,42.1],[41.7,42.1],[41.7,42.2],[41.6,42.2],[41.6,42.1]]]}
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    }
  ]
}`

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantID    string
		wantCRS   string
		wantBound orb.Bound
	}{
		{
			name:      "feature collection uses first feature",
			input:     squareFC,
			wantID:    "poti-harbour",
			wantCRS:   DefaultCRS,
			wantBound: orb.Bound{Min: orb.Point{41.6, 42.1}, Max: orb.Point{41.7, 42.2}},
		},
		{
			name:      "single feature with id",
			input:     `{"type":"Feature","id":"chip-12","properties":null,"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,3],[0,3],[0,0]]]}}`,
			wantID:    "chip-12",
			wantCRS:   DefaultCRS,
			wantBound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 3}},
		},
		{
			name:      "bare multipolygon takes first polygon",
			input:     `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]],[[[5,5],[6,5],[6,6],[5,6],[5,5]]]]}`,
			wantID:    "fallback",
			wantCRS:   DefaultCRS,
			wantBound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		},
		{
			name: "legacy crs member",
			input: `{"type":"FeatureCollection",
				"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::32638"}},
				"features":[{"type":"Feature","properties":{"id":"utm"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,0]]]}}]}`,
			wantID:    "utm",
			wantCRS:   "EPSG:32638",
			wantBound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.input), "fallback")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if r.ID != tt.wantID {
				t.Errorf("ID: got %q, want %q", r.ID, tt.wantID)
			}
			if r.CRS != tt.wantCRS {
				t.Errorf("CRS: got %q, want %q", r.CRS, tt.wantCRS)
			}
			if !r.Bound.Equal(tt.wantBound) {
				t.Errorf("Bound: got %v, want %v", r.Bound, tt.wantBound)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `not json`},
		{"no type", `{"features":[]}`},
		{"no features", `{"type":"FeatureCollection","features":[]}`},
		{"line geometry", `{"type":"LineString","coordinates":[[0,0],[1,1]]}`},
		{"null geometry", `{"type":"Feature","properties":{},"geometry":null}`},
		{"empty multipolygon", `{"type":"MultiPolygon","coordinates":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.input), "x"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	src := mapReader{
		"regions/batumi.geojson": []byte(`{"type":"Polygon","coordinates":[[[41.5,41.6],[41.7,41.6],[41.7,41.7],[41.5,41.7],[41.5,41.6]]]}`),
		"regions/empty.geojson":  []byte(`{"type":"FeatureCollection","features":[]}`),
	}

	r, err := Load(context.Background(), src, "regions/batumi.geojson")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.ID != "batumi" {
		t.Errorf("ID: got %q, want batumi", r.ID)
	}

	for _, uri := range []string{"regions/empty.geojson", "regions/missing.geojson"} {
		_, err := Load(context.Background(), src, uri)
		if !errors.Is(err, maskerr.ErrInputLoad) {
			t.Errorf("%s: got %v, want InputLoadError", uri, err)
		}
	}
}

func TestIsEastCoast(t *testing.T) {
	tests := []struct {
		name string
		minX float64
		want bool
	}{
		{"caspian side", 49.0, true},
		{"black sea side", 41.0, false},
		{"just west of the meridian", DefaultReferenceLongitude - 0.6, false},
		{"just east of the meridian", DefaultReferenceLongitude - 0.4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poly := orb.Polygon{{{tt.minX, 40}, {tt.minX + 1, 40}, {tt.minX + 1, 41}, {tt.minX, 41}, {tt.minX, 40}}}
			r := &Region{Polygon: poly, Bound: poly.Bound()}
			if got := r.IsEastCoast(DefaultReferenceLongitude); got != tt.want {
				t.Errorf("IsEastCoast: got %v, want %v (centroid %v)", got, tt.want, r.Centroid())
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {4, 0}, {4, 2}, {0, 2}, {0, 0}}}
	c := (&Region{Polygon: poly}).Centroid()
	if math.Abs(c[0]-2) > 1e-9 || math.Abs(c[1]-1) > 1e-9 {
		t.Errorf("Centroid: got %v, want (2, 1)", c)
	}
}
