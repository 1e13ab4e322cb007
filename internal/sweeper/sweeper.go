// Package sweeper periodically removes stale session values and expires
// abandoned checkout orders.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 5 * time.Minute

// Janitor is the cleanup surface of the repository.
type Janitor interface {
	PurgeSessionValues(ctx context.Context, olderThan time.Duration) (int64, error)
	ExpireStaleOrders(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Pruner drops in-process state idle for longer than olderThan.
type Pruner interface {
	Prune(olderThan time.Duration) int64
}

// Config controls how often the sweep runs and what counts as stale.
type Config struct {
	Interval   time.Duration
	SessionTTL time.Duration
	OrderTTL   time.Duration
}

// Result counts what one sweep removed.
type Result struct {
	SessionValues int64
	ExpiredOrders int64
	Pruned        int64
}

// RunOnce performs a single sweep. Every step runs even if an earlier one
// fails. Pruners share the session TTL.
func RunOnce(ctx context.Context, j Janitor, cfg Config, pruners ...Pruner) (Result, error) {
	var (
		res  Result
		errs []error
	)

	if cfg.SessionTTL > 0 {
		n, err := j.PurgeSessionValues(ctx, cfg.SessionTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge session values: %w", err))
		}
		res.SessionValues = n

		for _, p := range pruners {
			res.Pruned += p.Prune(cfg.SessionTTL)
		}
	}

	if cfg.OrderTTL > 0 {
		n, err := j.ExpireStaleOrders(ctx, cfg.OrderTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire orders: %w", err))
		}
		res.ExpiredOrders = n
	}

	return res, errors.Join(errs...)
}

// Start runs a background goroutine that sweeps every interval until ctx is done.
func Start(ctx context.Context, j Janitor, cfg Config, pruners ...Pruner) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Sweeper started", "interval", interval, "session_ttl", cfg.SessionTTL, "order_ttl", cfg.OrderTTL)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, j, cfg, pruners)
			case <-ctx.Done():
				slog.Info("Sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, j Janitor, cfg Config, pruners []Pruner) {
	res, err := RunOnce(ctx, j, cfg, pruners...)
	if err != nil {
		slog.Error("Sweep failed", "error", err)
	}
	if res.SessionValues > 0 || res.ExpiredOrders > 0 || res.Pruned > 0 {
		slog.Info("Sweep completed", "session_values", res.SessionValues, "expired_orders", res.ExpiredOrders, "pruned", res.Pruned)
	}
}
