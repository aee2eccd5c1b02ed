// Package config holds the runtime configuration for masking runs.
//
// Values come from three layers, later ones winning: DefaultConfig, an
// optional JSON file (Load), and SURFACE_MASK_* environment variables
// (ApplyEnv). The command line applies its flags on top.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/coastline"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/overpass"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/raster"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/region"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SURFACE_MASK_"

// Config holds runtime configuration for the masking pipeline.
type Config struct {
	// Side selection
	LandMask      bool   `json:"land_mask"`
	MaritimeMask  bool   `json:"maritime_mask"`
	ClosingPolicy string `json:"closing_policy"`

	// Meridian separating east from west coasts.
	ReferenceLongitude float64 `json:"reference_longitude"`

	// Coastline source
	OverpassURL     string `json:"overpass_url"`
	OverpassTimeout int    `json:"overpass_timeout"` // seconds

	// Batch execution
	Workers     int    `json:"workers"`
	MetricsFile string `json:"metrics_file"`

	// Previews and overlays
	PreviewWidth   int     `json:"preview_width"`
	OverlayColor   string  `json:"overlay_color"`
	OverlayOpacity float64 `json:"overlay_opacity"`

	// Integrations
	SentryDSN         string `json:"sentry_dsn"`
	SentryEnvironment string `json:"sentry_environment"`
	AWSRegion         string `json:"aws_region"`

	LogLevel string `json:"log_level"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		LandMask:           true,
		MaritimeMask:       false,
		ClosingPolicy:      coastline.PolicyLandFlag.String(),
		ReferenceLongitude: region.DefaultReferenceLongitude,
		OverpassURL:        overpass.DefaultURL,
		OverpassTimeout:    int(overpass.DefaultTimeout / time.Second),
		Workers:            4,
		PreviewWidth:       512,
		OverlayColor:       raster.DefaultOverlayColor,
		OverlayOpacity:     0.4,
		SentryEnvironment:  "dev",
		LogLevel:           "info",
	}
}

// Validate normalizes out-of-range tuning values and rejects settings that
// cannot be run.
func (c *Config) Validate() error {
	if c.OverpassTimeout <= 0 {
		c.OverpassTimeout = 60
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = 512
	}
	if c.OverlayOpacity < 0 || c.OverlayOpacity > 1 {
		c.OverlayOpacity = 0.4
	}
	if c.OverlayColor == "" {
		c.OverlayColor = "#ff0000"
	}

	if c.ReferenceLongitude < -180 || c.ReferenceLongitude > 180 {
		return &maskerr.ConfigError{Field: "reference_longitude", Reason: "must be within [-180, 180]"}
	}
	policy, err := coastline.ParsePolicy(c.ClosingPolicy)
	if err != nil {
		return err
	}
	if _, err := policy.Resolve(c.LandMask, c.MaritimeMask); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &maskerr.ConfigError{Field: "log_level", Reason: "must be one of debug, info, warn, error"}
	}
	return nil
}

// Policy returns the parsed closing policy.
func (c *Config) Policy() (coastline.Policy, error) {
	return coastline.ParsePolicy(c.ClosingPolicy)
}

// OverpassTimeoutDuration returns OverpassTimeout as a duration.
func (c *Config) OverpassTimeoutDuration() time.Duration {
	return time.Duration(c.OverpassTimeout) * time.Second
}

// Load reads configuration from the given JSON file path. A missing file
// yields DefaultConfig. The result is not validated; callers apply
// environment and flag overrides first.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return cfg, &maskerr.ConfigError{Field: path, Reason: err.Error()}
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SURFACE_MASK_* variables found by lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &maskerr.ConfigError{Field: EnvPrefix + name, Reason: "not a boolean"}
		}
		*dst = b
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &maskerr.ConfigError{Field: EnvPrefix + name, Reason: "not an integer"}
		}
		*dst = n
		return nil
	}
	float := func(name string, dst *float64) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &maskerr.ConfigError{Field: EnvPrefix + name, Reason: "not a number"}
		}
		*dst = f
		return nil
	}

	str("CLOSING_POLICY", &c.ClosingPolicy)
	str("OVERPASS_URL", &c.OverpassURL)
	str("METRICS_FILE", &c.MetricsFile)
	str("OVERLAY_COLOR", &c.OverlayColor)
	str("SENTRY_DSN", &c.SentryDSN)
	str("SENTRY_ENVIRONMENT", &c.SentryEnvironment)
	str("AWS_REGION", &c.AWSRegion)
	str("LOG_LEVEL", &c.LogLevel)

	for _, err := range []error{
		boolean("LAND_MASK", &c.LandMask),
		boolean("MARITIME_MASK", &c.MaritimeMask),
		float("REFERENCE_LONGITUDE", &c.ReferenceLongitude),
		integer("OVERPASS_TIMEOUT", &c.OverpassTimeout),
		integer("WORKERS", &c.Workers),
		integer("PREVIEW_WIDTH", &c.PreviewWidth),
		float("OVERLAY_OPACITY", &c.OverlayOpacity),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "write config")
}
