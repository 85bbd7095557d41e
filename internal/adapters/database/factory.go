package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds database configuration.
type Config struct {
	// Driver is detected from URL when empty.
	Driver Driver
	// URL is a postgres:// DSN or an SQLite path (optionally sqlite://).
	URL string
	// MaxConns caps the PostgreSQL pool.
	MaxConns int
}

// Factory opens a connection for one driver.
type Factory func(ctx context.Context, cfg Config) (Connection, error)

var factories = map[Driver]Factory{} //nolint:gochecknoglobals // driver registry filled from init

// Register installs the factory for a driver. Driver packages call it from init.
func Register(d Driver, f Factory) {
	factories[d] = f
}

// Open creates a connection based on cfg.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.URL)
	}
	if !driver.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	f, ok := factories[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotLinked, driver)
	}
	cfg.Driver = driver
	return f(ctx, cfg)
}

// EnsureDirectory creates the parent directory for a file path if it doesn't exist.
func EnsureDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
