// Package memory is a process-local storage backend. It is what tests and
// throwaway runs use; nothing survives the process.
package memory

import (
	"context"
	"sync"

	"crmextract/internal/storage"
)

// KV implements storage.KV over a map.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func init() {
	storage.Register("memory", func(context.Context, storage.Config) (storage.KV, error) {
		return New(), nil
	})
}

// New returns an empty KV.
func New() *KV {
	return &KV{data: map[string][]byte{}}
}

func (m *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *KV) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Close drops the stored data.
func (m *KV) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
}

// Len returns the number of stored keys.
func (m *KV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
