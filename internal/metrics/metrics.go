// Package metrics is a small backend-agnostic metrics facade.
//
// Core packages record through the package-level helpers; a binary picks a
// backend once at startup with SetBackend. Until then every call goes to a
// nop backend, so libraries and tests never need a metrics setup.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Backends key on these.
const (
	ExtractTotal           = "crm_extract_total"            // object_type, status
	RecordsTotal           = "crm_records_total"            // object_type, kind
	ExtractDurationSeconds = "crm_extract_duration_seconds" // status
	StoreOpsTotal          = "crm_store_ops_total"          // op, status
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusEmpty = "empty"
)

// Record kind label values.
const (
	KindExtracted = "extracted"
	KindInserted  = "inserted"
	KindUpdated   = "updated"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the nop
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the backend to submit whatever it buffered.
func Flush() error {
	return current().Flush()
}

// RecordExtract records one extraction trigger: its outcome, how long it took
// and how many records it produced.
func RecordExtract(objectType, status string, extracted int, d time.Duration) {
	if objectType == "" {
		objectType = "none"
	}
	b := current()
	b.IncCounter(ExtractTotal, 1, Labels{"object_type": objectType, "status": status})
	b.ObserveHistogram(ExtractDurationSeconds, d.Seconds(), Labels{"status": status})
	if extracted > 0 {
		b.IncCounter(RecordsTotal, float64(extracted), Labels{"object_type": objectType, "kind": KindExtracted})
	}
}

// RecordUpsert records the insert/update split of one merged batch.
func RecordUpsert(objectType string, inserted, updated int) {
	b := current()
	if inserted > 0 {
		b.IncCounter(RecordsTotal, float64(inserted), Labels{"object_type": objectType, "kind": KindInserted})
	}
	if updated > 0 {
		b.IncCounter(RecordsTotal, float64(updated), Labels{"object_type": objectType, "kind": KindUpdated})
	}
}

// RecordStoreOp counts one store operation. err decides the status label.
func RecordStoreOp(op string, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	current().IncCounter(StoreOpsTotal, 1, Labels{"op": op, "status": status})
}
