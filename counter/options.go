package counter

import (
	"fmt"

	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
)

// DefaultMaxAttempts bounds the increment-or-insert loop of OnMemberCreated.
const DefaultMaxAttempts = 50

type EngineOptions struct {
	MaxAttempts int
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

type EngineOption func(*EngineOptions) error

func newDefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		MaxAttempts: DefaultMaxAttempts,
		Logger:      log.Discard(),
	}
}

func WithMaxAttempts(attempts int) EngineOption {
	return func(opts *EngineOptions) error {
		if attempts < 1 {
			return fmt.Errorf("max attempts must be at least 1, got %d", attempts)
		}
		opts.MaxAttempts = attempts
		return nil
	}
}

func WithLogger(logger *log.Logger) EngineOption {
	return func(opts *EngineOptions) error {
		opts.Logger = logger
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(opts *EngineOptions) error {
		opts.Metrics = m
		return nil
	}
}
