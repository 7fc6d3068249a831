// Package dispatch handles extraction triggers: it runs the engine once
// against the current page, hands the batch to the store and reports the
// outcome to the caller and as a notice.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crmextract/internal/extracthtml"
	"crmextract/internal/metrics"
	"crmextract/internal/notify"
	"crmextract/internal/recordstore"
)

// ActionExtract is the only action a trigger understands.
const ActionExtract = "extract"

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NoRecordsMessage is shown when a trigger produced nothing.
const NoRecordsMessage = "No records found."

// Request is one trigger message.
type Request struct {
	Action string `json:"action"`
}

// Response answers a trigger. Count is set on success only.
type Response struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Notifier shows a transient notice.
type Notifier interface {
	Show(msg string, kind notify.Kind) notify.Notice
}

// Dispatcher wires a page source, the extraction engine, the store and an
// optional notifier.
type Dispatcher struct {
	source    PageSource
	extractor *extracthtml.Extractor
	store     *recordstore.Store
	notifier  Notifier
	now       func() time.Time
}

// New returns a Dispatcher. notifier may be nil.
func New(source PageSource, extractor *extracthtml.Extractor, store *recordstore.Store, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		source:    source,
		extractor: extractor,
		store:     store,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Handle answers one request. It never panics and never returns an error: every
// failure becomes an error Response.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	if req.Action != ActionExtract {
		zap.S().Warnf("ignoring unknown action %q", req.Action)
		return Response{Status: StatusError, Error: fmt.Sprintf("unknown action %q", req.Action)}
	}

	start := d.now()
	res, err := d.extract(ctx)
	if err != nil {
		zap.S().Errorf("extract failed: %v", err)
		metrics.RecordExtract(string(res.ObjectType), metrics.StatusError, 0, d.now().Sub(start))
		return Response{Status: StatusError, Error: err.Error()}
	}

	if len(res.Records) == 0 {
		zap.S().Infof("no records found (object type %q, mode %s)", res.ObjectType, res.Mode)
		metrics.RecordExtract(string(res.ObjectType), metrics.StatusEmpty, 0, d.now().Sub(start))
		d.show(NoRecordsMessage, notify.Error)
		return Response{Status: StatusError, Error: NoRecordsMessage}
	}

	up, err := d.store.UpsertBatch(ctx, res.ObjectType, res.Records)
	if err != nil {
		zap.S().Errorf("store %d %s: %v", len(res.Records), res.ObjectType, err)
		metrics.RecordExtract(string(res.ObjectType), metrics.StatusError, len(res.Records), d.now().Sub(start))
		return Response{Status: StatusError, Error: err.Error()}
	}

	metrics.RecordExtract(string(res.ObjectType), metrics.StatusOK, len(res.Records), d.now().Sub(start))
	zap.S().Infof("extracted %d %s via %s view (inserted=%d updated=%d)",
		up.Processed, res.ObjectType, res.Mode, up.Inserted, up.Updated)
	d.show(SuccessMessage(len(res.Records), string(res.ObjectType)), notify.Success)

	return Response{Status: StatusSuccess, Count: len(res.Records)}
}

// SuccessMessage is the notice text for a stored batch.
func SuccessMessage(count int, objectType string) string {
	return fmt.Sprintf("Extracted %d %s!", count, objectType)
}

// extract loads the page and runs the engine, turning a panic during DOM
// traversal into an error.
func (d *Dispatcher) extract(ctx context.Context) (res extracthtml.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	p, err := d.source.Page(ctx)
	if err != nil {
		return extracthtml.Result{}, fmt.Errorf("load page: %w", err)
	}
	return d.extractor.Extract(p), nil
}

func (d *Dispatcher) show(msg string, kind notify.Kind) {
	if d.notifier != nil {
		d.notifier.Show(msg, kind)
	}
}
