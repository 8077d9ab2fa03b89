package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/commit-board/internal/usecase"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Aggregates commit counts once and outputs them as JSON",
	Long: `Counts the commits of every repository in the configured organization and
prints the sorted result in JSON format, without starting the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, map[string]string{"github.org": "org"})
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		aggregator, err := buildAggregator(cfg, logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if cfg.Aggregate.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Aggregate.Timeout)
			defer cancel()
		}

		results, err := aggregator.Aggregate(ctx, cfg.GitHub.Org)
		if err != nil {
			return fmt.Errorf("failed to aggregate commit counts: %w", err)
		}

		var output any = results
		if withSummary, _ := cmd.Flags().GetBool("summary"); withSummary {
			output = map[string]any{
				"teams":   results,
				"summary": usecase.Summarize(results),
			}
		}

		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teamsCmd)
	teamsCmd.Flags().StringP("org", "o", "", "GitHub organization (overrides GITHUB_ORG)")
	teamsCmd.Flags().Bool("summary", false, "Include organization-wide summary figures")
}
