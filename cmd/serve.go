package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/commit-board/internal/cache"
	"github.com/naka-gawa/commit-board/internal/config"
	"github.com/naka-gawa/commit-board/internal/domain"
	"github.com/naka-gawa/commit-board/internal/gateway"
	"github.com/naka-gawa/commit-board/internal/rotator"
	"github.com/naka-gawa/commit-board/internal/server"
	"github.com/naka-gawa/commit-board/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	Long: `Start the HTTP server exposing /api/teams, /api/info and the static front-end.

GITHUB_TOKEN and GITHUB_ORG must be set (environment or .env file).
SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, map[string]string{
			"server.host":       "host",
			"server.port":       "port",
			"server.static_dir": "static-dir",
		})
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

		srv, err := buildServer(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.Start()
		}()

		logger.Info("Dashboard running",
			zap.String("org", cfg.GitHub.Org),
			zap.String("counter", cfg.GitHub.Counter),
			zap.Int("port", cfg.Server.Port))

		select {
		case err := <-errChan:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	},
}

// buildServer wires gateway, aggregator, cache and rotator into the HTTP server.
func buildServer(cfg *config.Config, logger *zap.Logger) (*server.Server, error) {
	aggregator, err := buildAggregator(cfg, logger)
	if err != nil {
		return nil, err
	}
	teamCache := cache.New(func(ctx context.Context) ([]domain.TeamRecord, error) {
		return aggregator.Aggregate(ctx, cfg.GitHub.Org)
	}, logger.Named("cache"), cache.WithRefreshTimeout(cfg.Aggregate.Timeout))

	infoRotator := buildRotator(cfg, logger)

	return server.New(cfg.Server, teamCache, infoRotator, logger.Named("http"),
		server.WithInfoConfigName(filepath.Base(cfg.InfoConfigPath()))), nil
}

func buildAggregator(cfg *config.Config, logger *zap.Logger) (*usecase.Aggregator, error) {
	fetcher, err := gateway.NewGitHubGateway(cfg.GitHub, logger.Named("github"))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return usecase.NewAggregator(fetcher, logger.Named("aggregator")), nil
}

func buildRotator(cfg *config.Config, logger *zap.Logger) *rotator.Rotator {
	return rotator.New(cfg.Info.ContentDir, cfg.InfoConfigPath(), logger.Named("rotator"))
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "server host")
	serveCmd.Flags().IntP("port", "p", 3000, "server port")
	serveCmd.Flags().String("static-dir", "public", "directory served at /")
}
