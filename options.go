package raceatlas

import (
	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// Option is a function that configures an Engine instance.
type Option func(*config) error

// config holds the assembled engine configuration.
type config struct {
	databaseURL string
	namedDSNs   map[string]string
	resolver    catalog.Resolver
	repo        catalog.Repository
	store       proposals.Store
	geocoder    catalog.Geocoder
	geocoding   bool
}

func newConfig() *config {
	return &config{}
}

// WithDatabaseURL points the engine at a PostgreSQL catalog. The
// connection is opened and the schema applied when the engine is
// created.
func WithDatabaseURL(dsn string) Option {
	return func(c *config) error {
		c.databaseURL = dsn
		return nil
	}
}

// WithNamedDatabases registers alternate catalogs (e.g. a staging copy)
// addressable by connection id on Apply and Merge calls.
func WithNamedDatabases(named map[string]string) Option {
	return func(c *config) error {
		c.namedDSNs = named
		return nil
	}
}

// WithResolver injects a custom connection resolver, replacing the
// built-in postgres one. The engine does not close injected resolvers.
func WithResolver(r catalog.Resolver) Option {
	return func(c *config) error {
		c.resolver = r
		return nil
	}
}

// WithRepository injects a catalog repository, replacing the built-in
// postgres store. Mostly used by tests.
func WithRepository(repo catalog.Repository) Option {
	return func(c *config) error {
		c.repo = repo
		return nil
	}
}

// WithStore injects the proposal audit store.
func WithStore(store proposals.Store) Option {
	return func(c *config) error {
		c.store = store
		return nil
	}
}

// WithGeocoder injects a custom geocoder implementation.
func WithGeocoder(g catalog.Geocoder) Option {
	return func(c *config) error {
		c.geocoder = g
		return nil
	}
}

// WithGeocoding enables coordinate enrichment through the default
// throttled Nominatim client.
func WithGeocoding(enabled bool) Option {
	return func(c *config) error {
		c.geocoding = enabled
		return nil
	}
}
