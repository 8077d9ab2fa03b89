// Package cache holds the most recent aggregation result and decides per
// request whether to serve it, refresh it or fall back to it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/naka-gawa/commit-board/internal/domain"
	"github.com/naka-gawa/commit-board/internal/metrics"
)

// TTL is the maximum age of a cached result. It is kept below the 60s
// dashboard poll so consecutive polls never both miss.
const TTL = 55 * time.Second

const refreshKey = "teams"

// ErrNoData is returned when a refresh failed and nothing was cached yet.
var ErrNoData = errors.New("no cached team data available")

// RefreshFunc produces a fresh, sorted team list.
type RefreshFunc func(ctx context.Context) ([]domain.TeamRecord, error)

// Entry is the single cached snapshot.
type Entry struct {
	Teams     []domain.TeamRecord
	Timestamp time.Time
}

// Result is what a caller gets back from Get.
type Result struct {
	Teams     []domain.TeamRecord
	UpdatedAt time.Time
	Cached    bool
	Stale     bool
}

// TeamCache owns the process-wide cache slot.
type TeamCache struct {
	refresh RefreshFunc
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	entry *Entry
	group singleflight.Group
}

// Option configures a TeamCache.
type Option func(*TeamCache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TeamCache) { c.now = now }
}

// WithRefreshTimeout bounds a single refresh run. Zero means no bound.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *TeamCache) { c.timeout = d }
}

// New creates an empty TeamCache.
func New(refresh RefreshFunc, logger *zap.Logger, opts ...Option) *TeamCache {
	c := &TeamCache{
		refresh: refresh,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached teams when fresh, otherwise refreshes them. A failed
// refresh falls back to the previous entry, however old, flagged stale; only
// when nothing was ever cached is the error returned.
func (c *TeamCache) Get(ctx context.Context) (Result, error) {
	if entry, ok := c.fresh(); ok {
		c.logger.Debug("Serving cached team data",
			zap.Duration("remaining", TTL-c.now().Sub(entry.Timestamp)))
		metrics.RecordCacheOutcome(metrics.OutcomeHit)
		return Result{Teams: entry.Teams, UpdatedAt: entry.Timestamp, Cached: true}, nil
	}

	// Concurrent misses share one refresh. The refresh is detached from the
	// triggering request so that request going away does not fail the others.
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.doRefresh(context.WithoutCancel(ctx))
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if res.Err != nil {
		return Result{}, res.Err
	}
	return res.Val.(Result), nil
}

// Peek returns the current entry without refreshing.
func (c *TeamCache) Peek() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Entry{}, false
	}
	return *c.entry, true
}

func (c *TeamCache) fresh() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry != nil && c.now().Sub(c.entry.Timestamp) < TTL {
		return *c.entry, true
	}
	return Entry{}, false
}

func (c *TeamCache) doRefresh(ctx context.Context) (Result, error) {
	// Another caller may have refreshed while this one waited for the group.
	if entry, ok := c.fresh(); ok {
		metrics.RecordCacheOutcome(metrics.OutcomeHit)
		return Result{Teams: entry.Teams, UpdatedAt: entry.Timestamp, Cached: true}, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("Fetching fresh team data")
	teams, err := c.refresh(ctx)
	if err != nil {
		c.mu.RLock()
		prev := c.entry
		c.mu.RUnlock()

		if prev != nil {
			c.logger.Error("Refresh failed, serving stale team data",
				zap.Time("updated_at", prev.Timestamp),
				zap.Error(err))
			metrics.RecordCacheOutcome(metrics.OutcomeStale)
			return Result{Teams: prev.Teams, UpdatedAt: prev.Timestamp, Cached: true, Stale: true}, nil
		}
		c.logger.Error("Refresh failed and no cached team data exists", zap.Error(err))
		metrics.RecordCacheOutcome(metrics.OutcomeError)
		return Result{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	entry := &Entry{Teams: teams, Timestamp: c.now()}
	c.mu.Lock()
	c.entry = entry
	c.mu.Unlock()

	c.logger.Info("Team data refreshed", zap.Int("teams", len(teams)))
	metrics.RecordCacheOutcome(metrics.OutcomeRefresh)
	return Result{Teams: entry.Teams, UpdatedAt: entry.Timestamp, Cached: false}, nil
}
