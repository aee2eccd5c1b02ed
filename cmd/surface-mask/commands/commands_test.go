package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/config"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/raster"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cfg, logger = nil, nil
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestConfigLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mask.json")
	if err := os.WriteFile(file, []byte(`{"workers": 8, "reference_longitude": 30, "log_level": "warn"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SURFACE_MASK_WORKERS", "3")
	t.Setenv("SURFACE_MASK_PREVIEW_WIDTH", "256")

	out := filepath.Join(dir, "effective.json")
	err := run(t, "config", "--config", file, "--write", out,
		"--preview-width", "128", "--land=false", "--log-level", "error")
	if err != nil {
		t.Fatalf("config command failed: %v", err)
	}

	got, err := config.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	// File < environment < flags.
	if got.ReferenceLongitude != 30 {
		t.Errorf("file value lost: reference_longitude=%g", got.ReferenceLongitude)
	}
	if got.Workers != 3 {
		t.Errorf("environment should override file: workers=%d", got.Workers)
	}
	if got.PreviewWidth != 128 || got.LandMask || got.LogLevel != "error" {
		t.Errorf("flags should override everything: %+v", got)
	}
}

func TestConfigRejectsBadCombination(t *testing.T) {
	err := run(t, "config", "--config", filepath.Join(t.TempDir(), "absent.json"),
		"--policy", "explicit", "--land", "--maritime")
	if !errors.Is(err, maskerr.ErrConfig) {
		t.Errorf("got %v, want ConfigError", err)
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	t.Setenv("SURFACE_MASK_WORKERS", "not-a-number")
	if err := run(t, "version"); err != nil {
		t.Errorf("version should not load config: %v", err)
	}
}

func TestBatch_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	r := raster.New(10, 10, 3, 16, raster.Affine{A: 1, E: -1, F: 10})
	for c := range r.Bands {
		for i := range r.Bands[c] {
			r.Bands[c][i] = 1000
		}
	}
	var buf bytes.Buffer
	if err := raster.Encode(&buf, r); err != nil {
		t.Fatal(err)
	}
	image := write("chip.tif", buf.Bytes())
	region := write("square.geojson", []byte(`{"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`))
	coast := write("coast.osm", []byte(`<osm version="0.6">
  <node id="1" lat="10" lon="0"/>
  <node id="2" lat="0" lon="10"/>
  <way id="7"><nd ref="1"/><nd ref="2"/><tag k="natural" v="coastline"/></way>
</osm>`))

	jobs := []map[string]string{
		{"id": "good", "image": image, "region": region, "coastline": coast, "output": filepath.Join(dir, "out", "good.tif")},
		{"id": "bad", "image": filepath.Join(dir, "missing.tif"), "region": region, "coastline": coast, "output": filepath.Join(dir, "out", "bad.tif")},
	}
	manifestJSON, _ := json.Marshal(jobs)
	manifest := write("jobs.json", manifestJSON)
	reportPath := filepath.Join(dir, "report.json")
	metricsPath := filepath.Join(dir, "surface_mask.prom")

	err := run(t, "batch", "--manifest", manifest, "--report", reportPath,
		"--reference-longitude", "4", "--workers", "2", "--metrics-file", metricsPath,
		"--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("batch error: got %v, want a 1 of 2 failure summary", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "good.tif"))
	if err != nil {
		t.Fatalf("good output missing: %v", err)
	}
	masked, _, err := raster.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if masked.Channels != 3 || masked.BitDepth != 16 {
		t.Errorf("output shape: %d channels @%d bits", masked.Channels, masked.BitDepth)
	}
	if masked.At(2, 9, 0) != 1000 || masked.At(2, 0, 9) != 0 {
		t.Errorf("masked samples: sea=%d land=%d, want 1000 and 0", masked.At(2, 9, 0), masked.At(2, 0, 9))
	}

	var report struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Failures  []struct {
			JobID string `json:"job_id"`
			Kind  string `json:"kind"`
		} `json:"failures"`
	}
	reportJSON, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 1 || report.Failed != 1 || report.Failures[0].JobID != "bad" || report.Failures[0].Kind != "input_load" {
		t.Errorf("report: %+v", report)
	}

	prom, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics textfile missing: %v", err)
	}
	if !strings.Contains(string(prom), `surface_mask_images_total{outcome="input_load"} 1`) {
		t.Errorf("metrics textfile lacks the failure count:\n%s", prom)
	}
}
