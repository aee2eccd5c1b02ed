package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/metrics"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/overpass"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/pipeline"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/storage"
)

// newProcessor wires the pipeline from the loaded configuration.
func newProcessor() (*pipeline.Processor, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	store := storage.NewRouter(cfg.AWSRegion)
	fetcher := overpass.New(cfg.OverpassURL, cfg.OverpassTimeoutDuration(), logger)

	proc := pipeline.New(store, fetcher, pipeline.Options{
		WantLand:           cfg.LandMask,
		WantMaritime:       cfg.MaritimeMask,
		Policy:             policy,
		ReferenceLongitude: cfg.ReferenceLongitude,
		OverlayColor:       cfg.OverlayColor,
		OverlayOpacity:     cfg.OverlayOpacity,
	}, logger)
	proc.Metrics = metrics.New()
	return proc, nil
}

// flushMetrics writes the textfile when one is configured. Failures are
// logged rather than returned so they never mask the command's own result.
func flushMetrics(proc *pipeline.Processor) {
	if err := proc.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", err)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
