package commands

import (
	"github.com/spf13/cobra"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/pipeline"
)

// mask --image X --region Y --out Z: mask a single image.
func maskCmd() *cobra.Command {
	var job pipeline.Job

	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Mask one image and write the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := newProcessor()
			if err != nil {
				return err
			}
			defer flushMetrics(proc)

			res, err := proc.Process(cmd.Context(), job)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&job.ImageURI, "image", "", "GeoTIFF to mask (path or s3://bucket/key)")
	cmd.Flags().StringVar(&job.RegionURI, "region", "", "GeoJSON region polygon")
	cmd.Flags().StringVar(&job.OutputURI, "out", "", "destination of the masked GeoTIFF")
	cmd.Flags().StringVar(&job.CoastlineURI, "coastline", "", "OSM XML extract to use instead of Overpass")
	cmd.Flags().StringVar(&job.OverlayPath, "overlay", "", "write a PNG of the mask over the image here")
	cmd.Flags().StringVar(&job.ID, "id", "", "job id used in logs")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
