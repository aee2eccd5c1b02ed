package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/metrics"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/raster"
)

func TestBatch_IsolatesFailures(t *testing.T) {
	p, store := newTestProcessor(t, &fakeFetcher{lines: diagonal})
	jobs := []Job{
		{ID: "a", ImageURI: "image.tif", RegionURI: "square.geojson", OutputURI: "out/a.tif"},
		{ID: "broken", ImageURI: "absent.tif", RegionURI: "square.geojson", OutputURI: "out/broken.tif"},
		{ID: "c", ImageURI: "image.tif", RegionURI: "square.geojson", OutputURI: "out/c.tif"},
	}

	report := p.Batch(context.Background(), jobs, 2)

	if report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("report counts: %+v", report)
	}
	if report.Results[0].JobID != "a" || report.Results[1].JobID != "c" {
		t.Errorf("results out of job order: %s, %s", report.Results[0].JobID, report.Results[1].JobID)
	}
	f := report.Failures[0]
	if f.JobID != "broken" || f.Kind != metrics.OutcomeInputLoad || f.Error == "" {
		t.Errorf("failure: %+v", f)
	}
	for _, uri := range []string{"out/a.tif", "out/c.tif"} {
		if _, ok := store.get(uri); !ok {
			t.Errorf("%s not written", uri)
		}
	}
	if _, ok := store.get("out/broken.tif"); ok {
		t.Error("failed job wrote output")
	}
	if report.Err() == nil {
		t.Error("Err should summarize the failure")
	}
}

func TestBatch_AllSucceed(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeFetcher{lines: diagonal})
	p.Metrics = metrics.New()

	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = Job{ImageURI: "image.tif", RegionURI: "square.geojson"}
	}
	report := p.Batch(context.Background(), jobs, 0)

	if report.Succeeded != len(jobs) || report.Err() != nil {
		t.Errorf("report: %+v", report)
	}
}

func TestBatch_Cancelled(t *testing.T) {
	fetcher := &fakeFetcher{lines: diagonal}
	p, _ := newTestProcessor(t, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := p.Batch(ctx, []Job{
		{ID: "a", ImageURI: "image.tif", RegionURI: "square.geojson"},
		{ID: "b", ImageURI: "image.tif", RegionURI: "square.geojson"},
	}, 1)

	if report.Failed != 2 {
		t.Fatalf("failed: got %d, want 2", report.Failed)
	}
	for _, f := range report.Failures {
		if f.Kind != metrics.OutcomeCancelled {
			t.Errorf("%s: kind %s, want cancelled", f.JobID, f.Kind)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("no job should start after cancellation, got %d fetches", fetcher.calls)
	}
}

func TestBatch_CancelledMidway(t *testing.T) {
	fetcher := &fakeFetcher{lines: diagonal}
	p, _ := newTestProcessor(t, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Rasters = RasterLoaderFunc(func(ctx context.Context, uri string) (*raster.Raster, error) {
		cancel()
		return nil, &maskerr.InputLoadError{Path: uri, Err: ctx.Err()}
	})

	jobs := []Job{
		{ID: "a", ImageURI: "image.tif", RegionURI: "square.geojson"},
		{ID: "b", ImageURI: "image.tif", RegionURI: "square.geojson"},
		{ID: "c", ImageURI: "image.tif", RegionURI: "square.geojson"},
	}
	report := p.Batch(ctx, jobs, 2)

	if report.Failed != 3 {
		t.Fatalf("failed: got %d, want 3", report.Failed)
	}
	for _, f := range report.Failures {
		if f.Kind != metrics.OutcomeCancelled {
			t.Errorf("%s: kind %s, want cancelled", f.JobID, f.Kind)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("no job should reach the fetch stage, got %d fetches", fetcher.calls)
	}
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantIDs []string
	}{
		{
			name:    "bare array",
			data:    `[{"image": "s3://chips/poti_01.tif", "region": "poti.geojson", "output": "out/1.tif"}]`,
			wantIDs: []string{"poti_01"},
		},
		{
			name: "jobs object",
			data: `{"jobs": [
				{"id": "x", "image": "a.tif", "region": "r.geojson"},
				{"image": "dir/b.tif", "region": "r.geojson", "land_mask": false}
			]}`,
			wantIDs: []string{"x", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := ParseManifest([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseManifest failed: %v", err)
			}
			if len(jobs) != len(tt.wantIDs) {
				t.Fatalf("jobs: got %d, want %d", len(jobs), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if jobs[i].ID != id {
					t.Errorf("job %d id: got %q, want %q", i, jobs[i].ID, id)
				}
			}
		})
	}
}

func TestParseManifest_LandMaskOverride(t *testing.T) {
	jobs, err := ParseManifest([]byte(`[{"image": "a.tif", "region": "r.geojson", "land_mask": false}]`))
	if err != nil {
		t.Fatal(err)
	}
	if jobs[0].LandMask == nil || *jobs[0].LandMask {
		t.Errorf("LandMask: got %v, want explicit false", jobs[0].LandMask)
	}
	if jobs[0].MaritimeMask != nil {
		t.Error("MaritimeMask should stay unset")
	}
}

func TestParseManifest_Errors(t *testing.T) {
	for name, data := range map[string]string{
		"syntax":        `{"jobs": [`,
		"empty":         `[]`,
		"missing image": `[{"region": "r.geojson"}]`,
		"duplicate ids": `[{"image": "a/x.tif", "region": "r"}, {"image": "b/x.tif", "region": "r"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(data)); !errors.Is(err, maskerr.ErrConfig) {
				t.Errorf("got %v, want ConfigError", err)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	p, store := newTestProcessor(t, nil)
	store.objects["jobs.json"] = []byte(`[{"image": "image.tif", "region": "square.geojson"}]`)

	jobs, err := p.LoadManifest(context.Background(), "jobs.json")
	if err != nil || len(jobs) != 1 {
		t.Fatalf("LoadManifest: %v, %d jobs", err, len(jobs))
	}
	if _, err := p.LoadManifest(context.Background(), "absent.json"); !errors.Is(err, maskerr.ErrInputLoad) {
		t.Errorf("missing manifest: got %v, want InputLoadError", err)
	}
}
