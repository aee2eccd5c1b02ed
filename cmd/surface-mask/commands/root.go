package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/config"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger

	// Flag values, applied over the file and environment only when set.
	flagLand         bool
	flagMaritime     bool
	flagPolicy       string
	flagRefLon       float64
	flagOverpassURL  string
	flagAWSRegion    string
	flagMetricsFile  string
	flagLogLevel     string
	flagWorkers      int
	flagPreviewWidth int
)

// Execute builds the command tree and runs it until completion or until
// SIGINT/SIGTERM cancels the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		if logger != nil {
			logger.Error("command failed", "error", err)
		} else {
			slog.Error("command failed", "error", err)
		}
	}
	sentry.Flush(2 * time.Second)
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "surface-mask",
		Short:         "Mask land or sea in georeferenced satellite chips using OSM coastlines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd)
			if err != nil {
				return err
			}
			// Logs go to stderr; stdout carries results and the tool protocol.
			logger = logging.NewStderr(cfg.LogLevel)
			slog.SetDefault(logger)

			if cfg.SentryDSN != "" {
				if err := sentry.Init(sentry.ClientOptions{
					Dsn:         cfg.SentryDSN,
					Environment: cfg.SentryEnvironment,
					Release:     Version,
				}); err != nil {
					logger.Error("sentry initialization failed", "error", err)
				}
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "JSON config file")
	pf.BoolVar(&flagLand, "land", true, "zero the land side of the coastline")
	pf.BoolVar(&flagMaritime, "maritime", false, "zero the sea side (explicit policy)")
	pf.StringVar(&flagPolicy, "policy", "", "closing policy: land-flag or explicit")
	pf.Float64Var(&flagRefLon, "reference-longitude", 0, "meridian separating east and west coasts")
	pf.StringVar(&flagOverpassURL, "overpass-url", "", "Overpass interpreter endpoint")
	pf.StringVar(&flagAWSRegion, "aws-region", "", "AWS region for s3:// inputs and outputs")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	pf.IntVar(&flagPreviewWidth, "preview-width", 0, "largest preview width in pixels")

	root.AddCommand(maskCmd(), batchCmd(), serveCmd(), configCmd(), versionCmd())
	return root
}

// loadConfig layers the config file, SURFACE_MASK_* variables and any
// explicitly set flags, then validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("land") {
		c.LandMask = flagLand
	}
	if flags.Changed("maritime") {
		c.MaritimeMask = flagMaritime
	}
	if flags.Changed("policy") {
		c.ClosingPolicy = flagPolicy
	}
	if flags.Changed("reference-longitude") {
		c.ReferenceLongitude = flagRefLon
	}
	if flags.Changed("overpass-url") {
		c.OverpassURL = flagOverpassURL
	}
	if flags.Changed("aws-region") {
		c.AWSRegion = flagAWSRegion
	}
	if flags.Changed("metrics-file") {
		c.MetricsFile = flagMetricsFile
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("workers") {
		c.Workers = flagWorkers
	}
	if flags.Changed("preview-width") {
		c.PreviewWidth = flagPreviewWidth
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
