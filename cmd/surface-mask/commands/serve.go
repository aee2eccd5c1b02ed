package commands

import (
	"github.com/spf13/cobra"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/server"
)

// serve: run the MCP tool server over stdin/stdout.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the masking tools over MCP (JSON-RPC on stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := newProcessor()
			if err != nil {
				return err
			}
			defer flushMetrics(proc)

			server.Version = Version
			srv := server.New(proc, logger)
			srv.PreviewWidth = cfg.PreviewWidth
			logger.Debug("surface-mask server starting", "version", Version, "built", BuildTime, "commit", GitCommit)
			return srv.Run(cmd.Context())
		},
	}
}
