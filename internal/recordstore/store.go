// Package recordstore persists extracted records as a single snapshot value
// in a storage.KV and reconciles new batches into it by identity.
package recordstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"crmextract/internal/metrics"
	"crmextract/internal/records"
	"crmextract/internal/storage"
)

// DefaultKey is the storage key holding the snapshot.
const DefaultKey = "crm_data"

// Store serializes in-process mutations of the snapshot. Processes sharing a
// backend still race last-writer-wins.
type Store struct {
	kv  storage.KV
	key string
	now func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey. Empty keys are ignored.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock overrides the clock used for lastSync.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store over kv.
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{kv: kv, key: DefaultKey, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Key returns the storage key in use.
func (s *Store) Key() string { return s.key }

// LastWrite reports when the backend last stored the snapshot. ok is false
// when the snapshot was never written or the backend keeps no timestamps.
func (s *Store) LastWrite(ctx context.Context) (time.Time, bool, error) {
	st, ok := s.kv.(storage.Stamper)
	if !ok {
		return time.Time{}, false, nil
	}
	ts, ok, err := st.UpdatedAt(ctx, s.key)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("updated_at %s: %w", s.key, err)
	}
	return ts, ok, nil
}

// UpsertResult describes one reconciled batch.
type UpsertResult struct {
	Processed int
	Inserted  int
	Updated   int
}

// Load returns the current snapshot, or the empty shape when nothing was
// stored yet.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (Snapshot, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	metrics.RecordStoreOp("get", err)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", s.key, err)
	}
	if !ok || len(data) == 0 {
		return EmptySnapshot(), nil
	}
	return decodeSnapshot(data)
}

func (s *Store) save(ctx context.Context, snap Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	err = s.kv.Set(ctx, s.key, data)
	metrics.RecordStoreOp("set", err)
	if err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// UpsertBatch merges recs into the collection for ot, stamps lastSync and
// writes the snapshot back in one Set. An empty batch writes nothing.
func (s *Store) UpsertBatch(ctx context.Context, ot records.ObjectType, recs []records.Record) (UpsertResult, error) {
	if !ot.Valid() {
		return UpsertResult{}, fmt.Errorf("upsert: %w: %q", records.ErrUnknownObjectType, ot)
	}
	if len(recs) == 0 {
		return UpsertResult{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return UpsertResult{}, err
	}

	merged, inserted, updated := Merge(snap.Records(ot), recs)
	snap.set(ot, merged)
	snap.LastSync = s.now().UnixMilli()

	if err := s.save(ctx, snap); err != nil {
		return UpsertResult{}, err
	}

	metrics.RecordUpsert(string(ot), inserted, updated)
	zap.S().Debugf("upserted %d %s (inserted=%d updated=%d)", len(recs), ot, inserted, updated)

	return UpsertResult{Processed: len(recs), Inserted: inserted, Updated: updated}, nil
}

// Delete removes the record with exactly id from the collection for ot. It
// reports whether anything was removed; lastSync is left alone.
func (s *Store) Delete(ctx context.Context, ot records.ObjectType, id string) (bool, error) {
	if !ot.Valid() {
		return false, fmt.Errorf("delete: %w: %q", records.ErrUnknownObjectType, ot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	current := snap.Records(ot)
	kept := lo.Reject(current, func(r records.Record, _ int) bool { return r.ID == id })
	if len(kept) == len(current) {
		return false, nil
	}
	snap.set(ot, kept)

	if err := s.save(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the stored snapshot entirely.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.kv.Remove(ctx, s.key)
	metrics.RecordStoreOp("remove", err)
	if err != nil {
		return fmt.Errorf("remove %s: %w", s.key, err)
	}
	return nil
}
