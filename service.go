// Package dircount wires storage, the hook registry and the directory
// counter into a ready to use service.
package dircount

import (
	"context"
	"fmt"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/blob"
	"github.com/mwantia/dircount/blob/s3"
	"github.com/mwantia/dircount/catalog"
	"github.com/mwantia/dircount/config"
	"github.com/mwantia/dircount/counter"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/hook"
	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
)

type Service struct {
	Config *config.Config

	Backend   backend.Backend
	Registry  *hook.Registry
	Installer *hook.Installer
	Engine    *counter.Engine
	Catalog   *catalog.Catalog
	Metrics   *metrics.Metrics

	log *log.Logger
}

// NewService opens the configured backend and builds every component on top.
func NewService(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	options := newDefaultServiceOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := options.Logger
	if logger == nil {
		logger = cfg.Logger()
	}

	reg := options.Registerer
	if reg == nil {
		reg = metrics.Registry
	}
	m := metrics.New(reg)

	b := options.Backend
	if b == nil {
		var err error
		if b, err = OpenBackend(ctx, cfg.Backend); err != nil {
			return nil, err
		}
	}
	if err := b.Open(ctx); err != nil {
		b.Close(ctx)
		return nil, fmt.Errorf("failed to open backend '%s': %w", b.Name(), err)
	}

	s, err := newService(ctx, cfg, b, logger, m)
	if err != nil {
		b.Close(ctx)
		return nil, err
	}

	logger.Debug("Opened backend '%s' with capabilities %v", b.Name(), b.GetCapabilities().Capabilities)
	return s, nil
}

func newService(ctx context.Context, cfg *config.Config, b backend.Backend, logger *log.Logger, m *metrics.Metrics) (*Service, error) {
	engine, err := counter.NewEngine(
		counter.WithMaxAttempts(cfg.Counter.MaxAttempts),
		counter.WithLogger(logger.Named("counter")),
		counter.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	registry := hook.NewRegistry()
	if err := counter.Register(registry, engine); err != nil {
		return nil, err
	}

	installer, err := hook.NewInstaller(b, registry,
		hook.WithLogger(logger.Named("hook")),
		hook.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	catalogOpts := []catalog.CatalogOption{
		catalog.WithSlot(cfg.Hook.Slot()),
		catalog.WithMaxAttempts(cfg.Counter.MaxAttempts),
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithMetrics(m),
	}
	if cfg.Blob != nil {
		store, err := openBlobStore(ctx, *cfg.Blob)
		if err != nil {
			return nil, err
		}
		catalogOpts = append(catalogOpts, catalog.WithBlobStore(store))
	}

	cat, err := catalog.NewCatalog(b, registry, catalogOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		Config:    cfg,
		Backend:   b,
		Registry:  registry,
		Installer: installer,
		Engine:    engine,
		Catalog:   cat,
		Metrics:   m,
		log:       logger,
	}, nil
}

func openBlobStore(ctx context.Context, cfg s3.S3Config) (blob.Store, error) {
	store, err := s3.NewS3Store(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return store, nil
}

// EnsureHook ensures the configured hook version, retrying lost races.
func (s *Service) EnsureHook(ctx context.Context) (hook.Outcome, error) {
	h := s.Config.Hook
	return s.EnsureVersion(ctx, h.Slot(), h.Version, h.Implementation)
}

// EnsureVersion calls the installer until the outcome is no longer a
// conflict. Every conflict means another installer made progress, so the
// loop is bounded by the configured max attempts.
func (s *Service) EnsureVersion(ctx context.Context, slot data.Slot, version int, ref string) (hook.Outcome, error) {
	attempts := s.Config.Counter.MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		outcome, err := s.Installer.EnsureVersion(ctx, slot, version, ref)
		if err != nil || outcome != hook.OutcomeConflict {
			return outcome, err
		}

		s.log.Debug("Install of %s v%d conflicted, retrying (attempt %d/%d)", slot, version, attempt, attempts)
	}

	return hook.OutcomeUnknown, fmt.Errorf("%w: install of %s v%d after %d attempts", data.ErrRetryExhausted, slot, version, attempts)
}

// Close closes the backend.
func (s *Service) Close(ctx context.Context) error {
	return s.Backend.Close(ctx)
}
