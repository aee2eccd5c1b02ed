// Package overpass fetches OpenStreetMap coastline ways from an Overpass API
// endpoint and turns them into line features.
package overpass

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/coastline"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// DefaultURL is the public Overpass interpreter endpoint.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// DefaultTimeout bounds a single Overpass request.
const DefaultTimeout = 60 * time.Second

// Client queries an Overpass endpoint for natural=coastline ways.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New returns a client for endpoint. An empty endpoint selects DefaultURL and
// a non-positive timeout selects DefaultTimeout.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		URL:        endpoint,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Query builds the Overpass QL request for coastline ways intersecting
// poly's outer ring, including the nodes they reference.
func Query(poly orb.Polygon, timeout time.Duration) string {
	var coords []string
	if len(poly) > 0 {
		for _, p := range poly[0] {
			coords = append(coords,
				strconv.FormatFloat(p.Lat(), 'f', -1, 64),
				strconv.FormatFloat(p.Lon(), 'f', -1, 64))
		}
	}
	secs := int(timeout / time.Second)
	if secs <= 0 {
		secs = int(DefaultTimeout / time.Second)
	}
	return fmt.Sprintf(`[out:xml][timeout:%d];(way["natural"="coastline"](poly:"%s");>;);out body;`,
		secs, strings.Join(coords, " "))
}

// FetchCoastline returns the coastline ways intersecting poly as a
// collection in EPSG:4326. An area without coastline yields an empty
// collection, not an error. Failures are *maskerr.InputLoadError naming the
// endpoint.
func (c *Client) FetchCoastline(ctx context.Context, poly orb.Polygon) (coastline.Collection, error) {
	col, err := c.fetch(ctx, poly)
	if err != nil {
		return coastline.Collection{}, &maskerr.InputLoadError{Path: c.URL, Err: err}
	}
	return col, nil
}

func (c *Client) fetch(ctx context.Context, poly orb.Polygon) (coastline.Collection, error) {
	q := Query(poly, c.HTTPClient.Timeout)
	form := url.Values{"data": {q}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return coastline.Collection{}, errors.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return coastline.Collection{}, errors.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return coastline.Collection{}, errors.Wrap(err, "overpass: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return coastline.Collection{}, fmt.Errorf("overpass: %s: %s", resp.Status, snippet(body))
	}

	col, err := Parse(body)
	if err != nil {
		return coastline.Collection{}, err
	}
	c.Logger.Debug("overpass coastline fetched",
		"ways", col.Len(),
		"bytes", len(body),
		"elapsed", time.Since(start))
	return col, nil
}

// Parse decodes OSM XML and returns every natural=coastline way as a line,
// ordered by way ID. Way nodes missing from the document are skipped; ways
// left with fewer than two points are dropped.
func Parse(data []byte) (coastline.Collection, error) {
	o := &osm.OSM{}
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(o); err != nil {
		return coastline.Collection{}, errors.Wrap(err, "overpass: decode osm xml")
	}

	nodes := make(map[osm.NodeID]orb.Point, len(o.Nodes))
	for _, n := range o.Nodes {
		nodes[n.ID] = n.Point()
	}

	ways := make([]*osm.Way, 0, len(o.Ways))
	for _, w := range o.Ways {
		if w.Tags.Find("natural") == "coastline" {
			ways = append(ways, w)
		}
	}
	sort.Slice(ways, func(i, j int) bool { return ways[i].ID < ways[j].ID })

	lines := make([]orb.LineString, 0, len(ways))
	for _, w := range ways {
		ls := make(orb.LineString, 0, len(w.Nodes))
		for _, wn := range w.Nodes {
			if p, ok := nodes[wn.ID]; ok {
				ls = append(ls, p)
			} else if wn.Lat != 0 || wn.Lon != 0 {
				ls = append(ls, orb.Point{wn.Lon, wn.Lat})
			}
		}
		if len(ls) >= 2 {
			lines = append(lines, ls)
		}
	}
	return coastline.Collection{CRS: coastline.CRSWGS84, Lines: lines}, nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
