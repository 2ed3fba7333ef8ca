package database

import (
	"context"
	"fmt"

	"github.com/concave-dev/trail/internal/validate"
)

// Supported backends.
const (
	BackendMemDB     = "memdb"
	BackendGoLevelDB = "goleveldb"
	BackendPostgres  = "postgres"
)

// Config selects and configures the document store.
type Config struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memdb goleveldb postgres"`
	Dir     string `mapstructure:"dir"`
	DSN     string `mapstructure:"dsn" json:"-"`
}

// DefaultConfig stores documents in goleveldb under ./data.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendGoLevelDB,
		Dir:     "./data",
	}
}

// Validate checks that the backend has what it needs to open.
func (c *Config) Validate() error {
	if err := validate.ValidateStruct(c); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	switch c.Backend {
	case BackendGoLevelDB:
		if err := validate.ValidateRequiredString(c.Dir, "database directory"); err != nil {
			return err
		}
	case BackendPostgres:
		if err := validate.ValidateRequiredString(c.DSN, "database DSN"); err != nil {
			return err
		}
	}
	return nil
}

// OpenProvider opens the provider selected by cfg.
func OpenProvider(ctx context.Context, cfg *Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendMemDB:
		return NewMemProvider(), nil
	case BackendGoLevelDB:
		return OpenKVProvider(cfg.Backend, cfg.Dir)
	default:
		return NewPostgresProvider(ctx, cfg.DSN)
	}
}

// Open opens the configured provider and initializes the typed layer on it.
func Open(ctx context.Context, cfg *Config, listener EventListener) (*Database, error) {
	provider, err := OpenProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db := New(provider, listener)
	if err := db.Init(ctx); err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to initialize %s database: %w", cfg.Backend, err)
	}
	return db, nil
}
