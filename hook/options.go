package hook

import (
	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
)

type InstallerOptions struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

type InstallerOption func(*InstallerOptions) error

func newDefaultInstallerOptions() *InstallerOptions {
	return &InstallerOptions{
		Logger: log.Discard(),
	}
}

func WithLogger(logger *log.Logger) InstallerOption {
	return func(opts *InstallerOptions) error {
		opts.Logger = logger
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) InstallerOption {
	return func(opts *InstallerOptions) error {
		opts.Metrics = m
		return nil
	}
}
