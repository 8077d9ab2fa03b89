// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/commit-board/internal/domain"
	"github.com/naka-gawa/commit-board/internal/gateway"
	"github.com/naka-gawa/commit-board/internal/metrics"
)

// chunkSize is the number of repositories counted concurrently.
const chunkSize = 5

// Aggregator is the use case for aggregating commit counts across an organization.
// It orchestrates listing the repositories and counting their commits.
type Aggregator struct {
	fetcher gateway.Fetcher
	logger  *zap.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Aggregate lists every repository of org and counts its commits, chunkSize
// repositories at a time. The result is sorted by commits, descending; ties
// keep the listing order. A failed listing returns an error, and so does a
// context that ends before every chunk is counted.
func (a *Aggregator) Aggregate(ctx context.Context, org string) ([]domain.TeamRecord, error) {
	start := time.Now()
	a.logger.Info("Usecase: Starting data aggregation...", zap.String("org", org))

	repos, err := a.fetcher.ListRepositories(ctx, org)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Usecase: Repositories found", zap.String("org", org), zap.Int("count", len(repos)))

	results := make([]domain.TeamRecord, len(repos))
	for i := 0; i < len(repos); i += chunkSize {
		end := min(i+chunkSize, len(repos))

		// Counting never fails, the group is only used to wait for the chunk.
		var eg errgroup.Group
		for j := i; j < end; j++ {
			j := j
			eg.Go(func() error {
				commits := a.fetcher.CountCommits(ctx, org, repos[j].Name)
				a.logger.Debug("Usecase: Repository counted",
					zap.String("repo", repos[j].Name),
					zap.Int("commits", commits))
				results[j] = domain.TeamRecord{Team: repos[j].Name, Commits: commits}
				return nil
			})
		}
		_ = eg.Wait()
		if err := ctx.Err(); err != nil {
			a.logger.Warn("Usecase: Aggregation interrupted",
				zap.String("org", org),
				zap.Int("counted", i),
				zap.Int("total", len(repos)),
				zap.Error(err))
			return nil, fmt.Errorf("aggregation of %s interrupted after %d of %d repositories: %w", org, i, len(repos), err)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Commits > results[j].Commits
	})

	elapsed := time.Since(start)
	metrics.RecordAggregation(elapsed.Seconds(), len(results))
	a.logger.Info("Usecase: Aggregation complete.",
		zap.Int("teams", len(results)),
		zap.Duration("elapsed", elapsed))
	return results, nil
}
