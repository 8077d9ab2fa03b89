package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/commit-board/internal/rotator"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Shows which rotation file the dashboard displays right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		r := buildRotator(cfg, logger)
		rotation := r.Config()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rotation: %v every %ds\n", rotation.ActiveFiles, rotation.RotationIntervalSeconds)

		content, err := r.Select()
		if err != nil {
			var missing *rotator.MissingFileError
			if errors.As(err, &missing) {
				fmt.Fprintf(out, "files present: %v\n", missing.Listing)
			}
			return err
		}
		fmt.Fprintf(out, "showing: %s (%d bytes)\n", content.FileName, len(content.Body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
