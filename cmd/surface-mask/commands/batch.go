package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// batch --manifest jobs.json: mask many images, isolating failures.
func batchCmd() *cobra.Command {
	var (
		manifest   string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Mask every image listed in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			proc, err := newProcessor()
			if err != nil {
				return err
			}
			defer flushMetrics(proc)

			jobs, err := proc.LoadManifest(ctx, manifest)
			if err != nil {
				return err
			}
			logger.Info("batch started", "jobs", len(jobs), "workers", cfg.Workers)

			report := proc.Batch(ctx, jobs, cfg.Workers)
			logger.Info("batch finished",
				"succeeded", report.Succeeded,
				"failed", report.Failed,
				"elapsed", report.Elapsed)

			if reportPath != "" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				if err := proc.Store.WriteObject(ctx, reportPath, data); err != nil {
					return err
				}
			}
			if err := printJSON(report); err != nil {
				return err
			}
			return report.Err()
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "JSON manifest of jobs (path or s3://bucket/key)")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write the batch report here")
	cmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "images processed in parallel")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
