package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/metrics"
)

// Failure records one image that could not be masked.
type Failure struct {
	JobID    string `json:"job_id"`
	ImageURI string `json:"image"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// BatchReport collects the per-image outcomes of a batch, in job order.
type BatchReport struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Results   []*Result     `json:"results"`
	Failures  []Failure     `json:"failures"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Err summarizes the failures, or returns nil when every image succeeded.
func (r *BatchReport) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d images failed", r.Failed, r.Total)
}

// Batch processes jobs with at most workers running at once. A failed image
// is recorded in the report and reported to Sentry; the rest of the batch
// carries on. Jobs not yet started when ctx is cancelled are recorded as
// cancelled.
func (p *Processor) Batch(ctx context.Context, jobs []Job, workers int) *BatchReport {
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		i := i
		g.Go(func() error {
			results[i], errs[i] = p.Process(ctx, jobs[i])
			return nil
		})
	}
	_ = g.Wait()

	report := &BatchReport{Total: len(jobs), Results: []*Result{}, Failures: []Failure{}}
	for i, err := range errs {
		if err == nil {
			report.Results = append(report.Results, results[i])
			continue
		}
		job := jobs[i]
		report.Failures = append(report.Failures, Failure{
			JobID:    job.ID,
			ImageURI: job.ImageURI,
			Kind:     metrics.Outcome(err),
			Error:    err.Error(),
		})
		p.Logger.Error("image failed", "job", job.ID, "image", job.ImageURI, "error", err)
		reportFailure(job, err)
	}
	report.Succeeded = len(report.Results)
	report.Failed = len(report.Failures)
	report.Elapsed = time.Since(start)
	return report
}

func reportFailure(job Job, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("outcome", metrics.Outcome(err))
		scope.SetExtra("job", job.ID)
		scope.SetExtra("image", job.ImageURI)
		scope.SetExtra("region", job.RegionURI)
		sentry.CaptureException(err)
	})
}

type manifest struct {
	Jobs []Job `json:"jobs"`
}

// ParseManifest decodes a batch manifest. Both a bare JSON array of jobs and
// an object with a "jobs" array are accepted. Jobs without an ID get the
// image file name; IDs must be unique.
func ParseManifest(data []byte) ([]Job, error) {
	var jobs []Job
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &jobs); err != nil {
			return nil, &maskerr.ConfigError{Field: "manifest", Reason: err.Error()}
		}
	} else {
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &maskerr.ConfigError{Field: "manifest", Reason: err.Error()}
		}
		jobs = m.Jobs
	}

	if len(jobs) == 0 {
		return nil, &maskerr.ConfigError{Field: "manifest", Reason: "no jobs"}
	}
	for i := range jobs {
		j := &jobs[i]
		if j.ImageURI == "" || j.RegionURI == "" {
			return nil, &maskerr.ConfigError{Field: fmt.Sprintf("manifest.jobs[%d]", i), Reason: "image and region are required"}
		}
		if j.ID == "" {
			base := path.Base(j.ImageURI)
			j.ID = strings.TrimSuffix(base, path.Ext(base))
		}
	}

	dups := lo.FindDuplicates(lo.Map(jobs, func(j Job, _ int) string { return j.ID }))
	if len(dups) > 0 {
		return nil, &maskerr.ConfigError{Field: "manifest", Reason: fmt.Sprintf("duplicate job ids %v", dups)}
	}
	return jobs, nil
}

// LoadManifest reads and parses the manifest at uri through the processor's
// store.
func (p *Processor) LoadManifest(ctx context.Context, uri string) ([]Job, error) {
	data, err := p.Store.ReadObject(ctx, uri)
	if err != nil {
		return nil, &maskerr.InputLoadError{Path: uri, Err: err}
	}
	jobs, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
