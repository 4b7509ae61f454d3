package store

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/event"
)

// Repositories is what a driver hands back from Open.
type Repositories struct {
	Gateway Gateway
	Events  event.Store
	// Closer releases the file or connection pool.
	Closer io.Closer
	// Ping reports whether the backing store is reachable.
	Ping func(ctx context.Context) error
}

// Driver opens a backing store.
type Driver func(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*Repositories, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes a driver available under name. Driver packages call it
// from init. Registering the same name twice panics.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("store: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("store: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return slices.Sorted(maps.Keys(drivers))
}

// Open opens the store named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*Repositories, error) {
	driversMu.RLock()
	d, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (registered: %v)", cfg.Driver, Drivers())
	}
	repos, err := d(ctx, cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Driver, err)
	}
	return repos, nil
}
