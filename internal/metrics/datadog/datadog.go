// Package datadog submits internal/metrics observations to Datadog.
//
// Observations are aggregated per series (metric name plus tag set) into a
// window. The window is swapped out and submitted on every tick of the flush
// interval and once more on Close, so a one-shot "extract" still delivers its
// counts at exit while "serve" produces a regular time series. Counters become
// COUNT series; histograms become GAUGE summaries (p50, p90, p99, max, count).
package datadog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/samber/lo"

	"crmextract/internal/metrics"
)

// DefaultJobName tags every series as job:crmextract unless Options.JobName
// says otherwise.
const DefaultJobName = "crmextract"

const defaultFlushEvery = time.Minute

// tagSep joins tags inside a series key; tag values never contain it.
const tagSep = "\x00"

// seriesSpec names the Datadog metric for a facade metric and the labels it is
// tagged with. Observations on names missing here are dropped.
type seriesSpec struct {
	name   string
	labels []string
}

var specs = map[string]seriesSpec{
	metrics.ExtractTotal:           {"crm.extract.total", []string{"object_type", "status"}},
	metrics.RecordsTotal:           {"crm.records.total", []string{"object_type", "kind"}},
	metrics.StoreOpsTotal:          {"crm.store.ops.total", []string{"op", "status"}},
	metrics.ExtractDurationSeconds: {"crm.extract.duration_seconds", []string{"status"}},
}

// Options configures NewBackend.
type Options struct {
	// JobName becomes the job:<name> tag. Empty means DefaultJobName.
	JobName string

	// Tags are appended to every series, e.g. "team:sales-ops".
	Tags []string

	// FlushEvery is the submission interval. Zero or negative means one minute.
	FlushEvery time.Duration

	// test seams
	now       func() time.Time
	ticks     func(d time.Duration) (<-chan time.Time, func())
	submitter submitter
}

// submitter is the part of *datadogV2.MetricsApi the backend calls.
type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

type seriesKey struct {
	metric string
	tags   string
}

// window holds what was observed since the last flush.
type window struct {
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

func newWindow() window {
	return window{
		counts:  make(map[seriesKey]float64),
		samples: make(map[seriesKey][]float64),
	}
}

func (w window) empty() bool {
	return len(w.counts) == 0 && len(w.samples) == 0
}

// Backend is a metrics.Backend that buffers and periodically submits to
// Datadog. It is safe for concurrent use.
type Backend struct {
	api      submitter
	ctx      context.Context
	baseTags []string
	now      func() time.Time

	mu  sync.Mutex
	cur window

	stop      context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend builds a backend on the official client and starts its flush
// loop. The client reads DD_API_KEY and DD_SITE from the environment; a bad
// key surfaces as a Flush error, not here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, initErr(errors.New("nil context"))
	}

	every := opts.FlushEvery
	if every <= 0 {
		every = defaultFlushEvery
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	ticks := opts.ticks
	if ticks == nil {
		ticks = tickerTicks
	}
	api := opts.submitter
	if api == nil {
		api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	loopCtx, stop := context.WithCancel(parent)
	b := &Backend{
		api:      api,
		ctx:      dd.NewDefaultContext(parent),
		baseTags: append([]string{envTag(), "job:" + lo.CoalesceOrEmpty(opts.JobName, DefaultJobName)}, opts.Tags...),
		now:      now,
		cur:      newWindow(),
		stop:     stop,
		done:     make(chan struct{}),
	}

	c, release := ticks(every)
	go b.loop(loopCtx, c, release)
	return b, nil
}

func tickerTicks(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (b *Backend) loop(ctx context.Context, c <-chan time.Time, release func()) {
	defer close(b.done)
	defer release()
	for {
		select {
		case <-c:
			_ = b.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the flush loop and submits what is left. Calling it again is a
// no-op.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.stop()
		<-b.done
		err = b.Flush()
	})
	return err
}

// IncCounter adds delta to the series for name and labels. Non-positive
// deltas and unmapped names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k, ok := keyFor(name, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.cur.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram records one sample. Negative values and unmapped names are
// dropped.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || math.IsNaN(value) {
		return
	}
	k, ok := keyFor(name, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.cur.samples[k] = append(b.cur.samples[k], value)
	b.mu.Unlock()
}

// Flush submits the current window and starts a new one. The window is
// discarded even when submission fails, so delivery is at most once.
func (b *Backend) Flush() error {
	b.mu.Lock()
	w := b.cur
	b.cur = newWindow()
	b.mu.Unlock()

	if w.empty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.series(w, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog submit %d series: %w", len(payload.Series), err)
	}
	return nil
}

// series renders a window. Output is sorted by metric and tags so payloads
// are stable.
func (b *Backend) series(w window, ts int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(w.counts)+5*len(w.samples))
	for _, k := range sortedKeys(w.counts) {
		out = append(out, point(k.metric, datadogV2.METRICINTAKETYPE_COUNT, w.counts[k], b.tags(k), ts))
	}
	for _, k := range sortedKeys(w.samples) {
		out = append(out, summary(k.metric, w.samples[k], b.tags(k), ts)...)
	}
	return out
}

func (b *Backend) tags(k seriesKey) []string {
	return append(append([]string(nil), b.baseTags...), strings.Split(k.tags, tagSep)...)
}

// summary turns samples into p50/p90/p99/max/count gauges.
func summary(metric string, samples []float64, tags []string, ts int64) []datadogV2.MetricSeries {
	s := append([]float64(nil), samples...)
	sort.Float64s(s)
	gauge := datadogV2.METRICINTAKETYPE_GAUGE
	return []datadogV2.MetricSeries{
		point(metric+".p50", gauge, quantile(s, 0.50), tags, ts),
		point(metric+".p90", gauge, quantile(s, 0.90), tags, ts),
		point(metric+".p99", gauge, quantile(s, 0.99), tags, ts),
		point(metric+".max", gauge, s[len(s)-1], tags, ts),
		point(metric+".count", gauge, float64(len(s)), tags, ts),
	}
}

func point(metric string, typ datadogV2.MetricIntakeType, v float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
		Tags:   tags,
	}
}

// quantile returns the nearest-rank q-quantile of sorted s.
func quantile(s []float64, q float64) float64 {
	if len(s) == 0 {
		return 0
	}
	i := int(math.Ceil(q*float64(len(s)))) - 1
	return s[min(max(i, 0), len(s)-1)]
}

// keyFor maps a facade observation to its series. Missing label values are
// tagged "unknown".
func keyFor(name string, labels metrics.Labels) (seriesKey, bool) {
	spec, ok := specs[name]
	if !ok {
		return seriesKey{}, false
	}
	tags := lo.Map(spec.labels, func(l string, _ int) string {
		return l + ":" + lo.CoalesceOrEmpty(labels[l], "unknown")
	})
	return seriesKey{metric: spec.name, tags: strings.Join(tags, tagSep)}, true
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].metric != keys[j].metric {
			return keys[i].metric < keys[j].metric
		}
		return keys[i].tags < keys[j].tags
	})
	return keys
}

// envTag is env:<ENV>, else env:<DD_ENV>, else env:unknown.
func envTag() string {
	return "env:" + lo.CoalesceOrEmpty(
		strings.TrimSpace(os.Getenv("ENV")),
		strings.TrimSpace(os.Getenv("DD_ENV")),
		"unknown",
	)
}

func initErr(err error) error {
	return fmt.Errorf("datadog metrics init: %w", err)
}
