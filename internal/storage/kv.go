package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnsupportedKind is returned by New when no backend is registered for the
// configured kind.
var ErrUnsupportedKind = errors.New("unsupported storage kind")

// Config is the minimal configuration needed to open a key-value backend.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - Table is ignored by the memory backend. SQL backends fall back to
//     DefaultTable when it is empty.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// KV is the persistence surface the merge store needs: one opaque value per
// key, replaced wholesale on every write.
//
// Each backend implements these semantics in its own idiomatic way (Postgres
// and SQLite ON CONFLICT, SQL Server MERGE, MySQL via gorm OnConflict).
type KV interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; that is not an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any backend resources (connections, pools).
	//
	// Callers should treat Close as "call once".
	Close()
}

// Stamper is implemented by backends that record when each key was last
// written. ok is false when the key is absent.
type Stamper interface {
	UpdatedAt(ctx context.Context, key string) (ts time.Time, ok bool, err error)
}

// Factory opens a backend for cfg.
type Factory func(ctx context.Context, cfg Config) (KV, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This fails fast instead of letting two
//     backends race for the same name.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New opens a KV using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error wrapping ErrUnsupportedKind if cfg.Kind is empty or
//     not registered. The message lists the registered kinds.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (KV, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind: %w", ErrUnsupportedKind)
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage.kind=%s (have %v): %w", cfg.Kind, Kinds(), ErrUnsupportedKind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
