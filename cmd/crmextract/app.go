package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"crmextract/internal/config"
	"crmextract/internal/extracthtml"
	"crmextract/internal/metrics"
	"crmextract/internal/metrics/datadog"
	"crmextract/internal/recordstore"
	"crmextract/internal/storage"
	_ "crmextract/internal/storage/all"
)

// app carries what every subcommand shares: IO, flags and configuration, and
// the resources to release when the command returns.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath    string
	logLevel      string
	selectorsPath string

	cfg     *config.Config
	closers []func()
}

func (a *app) onClose(f func()) {
	a.closers = append(a.closers, f)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) extractor() (*extracthtml.Extractor, error) {
	sel := extracthtml.DefaultSelectors()
	if a.cfg.Selectors != "" {
		var err error
		if sel, err = extracthtml.LoadSelectorFile(a.cfg.Selectors); err != nil {
			return nil, usageError{fmt.Errorf("load selectors: %w", err)}
		}
	}
	return extracthtml.NewExtractor(sel), nil
}

func (a *app) openStore(ctx context.Context) (*recordstore.Store, error) {
	kv, err := storage.New(ctx, a.cfg.Storage.KV())
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", a.cfg.Storage.Kind, err)
	}
	a.onClose(kv.Close)
	zap.S().Debugf("storage: %s", a.cfg)
	return recordstore.New(kv, recordstore.WithKey(a.cfg.Storage.Key)), nil
}

// startMetrics installs the configured metrics backend. A backend that fails
// to start leaves the nop backend in place.
func (a *app) startMetrics(ctx context.Context) {
	m := a.cfg.Metrics
	switch m.Backend {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    m.JobName,
			Tags:       m.Tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			zap.S().Warnf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		zap.S().Infof("metrics: backend=datadog job_name=%s tags=%v", m.JobName, m.Tags)
		metrics.SetBackend(b)
		a.onClose(func() {
			if err := b.Close(); err != nil {
				zap.S().Warnf("metrics: datadog close/flush error: %v", err)
			}
			metrics.SetBackend(nil)
		})
	default:
		zap.S().Debugf("metrics: disabled (backend=%q)", m.Backend)
	}
}

// loadPage reads a snapshot from file, or from stdin when file is empty.
func (a *app) loadPage(ctx context.Context, file, pageURL string) (extracthtml.Page, error) {
	return extracthtml.NewLoader(0).Load(ctx, a.pageInput(file, pageURL))
}

func (a *app) pageInput(file, pageURL string) extracthtml.Input {
	in := extracthtml.Input{Path: file, URL: pageURL}
	if file == "" {
		in.Stdin = a.stdin
	}
	return in
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
