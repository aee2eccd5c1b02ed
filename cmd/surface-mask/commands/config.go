package commands

import (
	"github.com/spf13/cobra"
)

// config --write path: print or save the effective configuration.
func configCmd() *cobra.Command {
	var writePath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration after file, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if writePath != "" {
				if err := cfg.Save(writePath); err != nil {
					return err
				}
				logger.Info("config written", "path", writePath)
				return nil
			}
			redacted := *cfg
			if redacted.SentryDSN != "" {
				redacted.SentryDSN = "<redacted>"
			}
			return printJSON(&redacted)
		},
	}
	cmd.Flags().StringVar(&writePath, "write", "", "save the configuration to this JSON file")
	return cmd
}
