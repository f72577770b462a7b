package catalog

import (
	"fmt"

	"github.com/mwantia/dircount/blob"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
)

// DefaultMaxAttempts bounds how often a unit of work is retried after a
// commit conflict.
const DefaultMaxAttempts = 50

type CatalogOptions struct {
	Slot        data.Slot
	MaxAttempts int
	Blobs       blob.Store
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

type CatalogOption func(*CatalogOptions) error

func newDefaultCatalogOptions() *CatalogOptions {
	return &CatalogOptions{
		Slot:        data.DefaultSlot,
		MaxAttempts: DefaultMaxAttempts,
		Logger:      log.Discard(),
	}
}

func WithSlot(slot data.Slot) CatalogOption {
	return func(opts *CatalogOptions) error {
		if err := slot.Validate(); err != nil {
			return err
		}
		opts.Slot = slot
		return nil
	}
}

func WithMaxAttempts(attempts int) CatalogOption {
	return func(opts *CatalogOptions) error {
		if attempts < 1 {
			return fmt.Errorf("max attempts must be at least 1, got %d", attempts)
		}
		opts.MaxAttempts = attempts
		return nil
	}
}

func WithBlobStore(store blob.Store) CatalogOption {
	return func(opts *CatalogOptions) error {
		opts.Blobs = store
		return nil
	}
}

func WithLogger(logger *log.Logger) CatalogOption {
	return func(opts *CatalogOptions) error {
		opts.Logger = logger
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) CatalogOption {
	return func(opts *CatalogOptions) error {
		opts.Metrics = m
		return nil
	}
}
