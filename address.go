package dircount

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/backend/consul"
	"github.com/mwantia/dircount/backend/memory"
	"github.com/mwantia/dircount/backend/postgres"
	"github.com/mwantia/dircount/backend/sqlite"
	"github.com/mwantia/dircount/data"
)

// OpenBackend creates the backend described by address:
//
//	memory://
//	sqlite://<path>                     sqlite://:memory: for a private database
//	postgres://<user>:<pass>@<host>/<db>
//	consul://<host>:<port>/<prefix>?token=<token>&dc=<datacenter>&ns=<namespace>
//
// The backend is not opened yet.
func OpenBackend(ctx context.Context, address string) (backend.Backend, error) {
	// Format address
	address = strings.TrimSpace(address)
	// Quick check to identify if we work with a possibly valid address
	if !strings.Contains(address, "://") {
		return nil, fmt.Errorf("failed to parse address '%s': %w", address, data.ErrMalformedBackendAddress)
	}

	switch {
	case strings.HasPrefix(address, "memory://"):
		return memory.NewMemoryBackend(), nil
	case strings.HasPrefix(address, "sqlite://"):
		return parseSqliteAddress(strings.TrimPrefix(address, "sqlite://"))
	case strings.HasPrefix(address, "postgres://"), strings.HasPrefix(address, "postgresql://"):
		return postgres.NewPostgresBackend(ctx, address)
	case strings.HasPrefix(address, "consul://"):
		return parseConsulAddress(address)
	}

	return nil, fmt.Errorf("failed to parse address '%s': %w", address, data.ErrUnknownBackendProtocol)
}

func parseSqliteAddress(path string) (backend.Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to parse sqlite address: %w: empty path", data.ErrMalformedBackendAddress)
	}

	return sqlite.NewSQLiteBackend(path)
}

func parseConsulAddress(address string) (backend.Backend, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse consul address: %w: %v", data.ErrMalformedBackendAddress, err)
	}

	query := u.Query()
	return consul.NewConsulBackend(&consul.ConsulBackendConfig{
		Address:    u.Host,
		Prefix:     strings.Trim(u.Path, "/"),
		Token:      query.Get("token"),
		Datacenter: query.Get("dc"),
		Namespace:  query.Get("ns"),
	})
}
