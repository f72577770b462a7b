// Package counter keeps one counter row per directory equal to the number of
// its live members.
package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
)

// Engine applies member events to the counter table. Every call runs inside
// the caller's unit of work and never commits on its own.
type Engine struct {
	maxAttempts int

	log     *log.Logger
	metrics *metrics.Metrics
}

func NewEngine(opts ...EngineOption) (*Engine, error) {
	options := newDefaultEngineOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return &Engine{
		maxAttempts: options.MaxAttempts,
		log:         options.Logger,
		metrics:     options.Metrics,
	}, nil
}

// MaxAttempts returns the bound of the create loop.
func (e *Engine) MaxAttempts() int {
	return e.maxAttempts
}

// OnMemberCreated adds one member to the counter of key.
//
// It increments first and only inserts when no row matched. A uniqueness
// conflict on insert means a concurrent creator won, so the loop starts over
// with the increment. Each lost round implies progress by a competitor.
func (e *Engine) OnMemberCreated(ctx context.Context, tx backend.CounterTx, key string) error {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		matched, err := tx.IncrementCounter(ctx, key, 1)
		if err != nil {
			return fmt.Errorf("failed to increment counter '%s': %w", key, err)
		}
		if matched {
			e.log.Debug("Incremented counter '%s'", key)
			e.metrics.ObservePath(metrics.PathUpdate)
			return nil
		}

		inserted, err := tx.InsertCounter(ctx, data.NewCounter(key, 1))
		if err != nil {
			return fmt.Errorf("failed to insert counter '%s': %w", key, err)
		}
		if inserted {
			e.log.Debug("Inserted counter '%s'", key)
			e.metrics.ObservePath(metrics.PathInsert)
			return nil
		}

		e.log.Debug("Counter '%s' was created concurrently, retrying (attempt %d/%d)", key, attempt, e.maxAttempts)
		e.metrics.ObservePath(metrics.PathConflictRetry)
	}

	e.log.Error("Gave up creating counter '%s' after %d attempts", key, e.maxAttempts)
	return fmt.Errorf("%w: counter '%s' after %d attempts", data.ErrRetryExhausted, key, e.maxAttempts)
}

// OnMemberRemoved removes one member from the counter of key and deletes the
// row with its last member. The row stays locked until the unit of work ends.
func (e *Engine) OnMemberRemoved(ctx context.Context, tx backend.CounterTx, key string) error {
	counter, err := tx.LockCounter(ctx, key)
	if errors.Is(err, data.ErrNotExist) {
		return e.missing(key)
	}
	if err != nil {
		return fmt.Errorf("failed to lock counter '%s': %w", key, err)
	}

	if counter.Count <= 1 {
		if err := tx.DeleteCounter(ctx, key); err != nil {
			return fmt.Errorf("failed to delete counter '%s': %w", key, err)
		}

		e.log.Debug("Deleted counter '%s'", key)
		e.metrics.ObservePath(metrics.PathDelete)
		return nil
	}

	matched, err := tx.IncrementCounter(ctx, key, -1)
	if err != nil {
		return fmt.Errorf("failed to decrement counter '%s': %w", key, err)
	}
	if !matched {
		return e.missing(key)
	}

	e.log.Debug("Decremented counter '%s' to %d", key, counter.Count-1)
	e.metrics.ObservePath(metrics.PathDecrement)
	return nil
}

func (e *Engine) missing(key string) error {
	e.log.Error("Removal event for '%s' without a counter, membership and counters are out of sync", key)
	e.metrics.ObserveInvariantError()

	return fmt.Errorf("%w: '%s'", data.ErrCounterMissing, key)
}
