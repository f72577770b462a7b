package dircount

import (
	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/log"
	"github.com/prometheus/client_golang/prometheus"
)

type ServiceOptions struct {
	Logger     *log.Logger
	Registerer prometheus.Registerer
	Backend    backend.Backend
}

type ServiceOption func(*ServiceOptions) error

func newDefaultServiceOptions() *ServiceOptions {
	return &ServiceOptions{}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(opts *ServiceOptions) error {
		opts.Logger = logger
		return nil
	}
}

// WithRegisterer registers all metrics with reg instead of metrics.Registry.
func WithRegisterer(reg prometheus.Registerer) ServiceOption {
	return func(opts *ServiceOptions) error {
		opts.Registerer = reg
		return nil
	}
}

// WithBackend uses b instead of opening the configured backend address.
func WithBackend(b backend.Backend) ServiceOption {
	return func(opts *ServiceOptions) error {
		opts.Backend = b
		return nil
	}
}
