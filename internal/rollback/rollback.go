// Package rollback tracks how often a chain-sync attempt rolled the
// local chain back before applying an incoming suffix, split by whether
// the rollback was ultimately committed or ignored, and by an all-time
// versus a recent, time-windowed view.
package rollback

import (
	"sync"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// Result classifies how a rollback attempt ended.
type Result int

const (
	// Committed means the rollback's cache transaction was applied.
	Committed Result = iota
	// Ignored means the attempt rolled back nothing durable: a neutral
	// rejection or a stateful failure discarded the transaction.
	Ignored
)

// CounterKind selects between the all-time and the recent, time-windowed
// view of a counter family.
type CounterKind int

const (
	All CounterKind = iota
	Recent
)

// TimeSource abstracts the clock Info queries against, so tests can
// control what "now" and "recent" mean without sleeping.
type TimeSource func() time.Time

type record struct {
	at    time.Time
	delta int64
}

// ring is a fixed-capacity circular buffer of (timestamp, delta)
// records, oldest overwritten first. Capacity is generous rather than
// exact: Recent's correctness comes from filtering by timestamp, not
// from the ring holding every event that ever happened.
type ring struct {
	records []record
	next    int
	full    bool
}

func newRing(capacity int) *ring {
	return &ring{records: make([]record, capacity)}
}

func (r *ring) push(at time.Time, delta int64) {
	r.records[r.next] = record{at: at, delta: delta}
	r.next = (r.next + 1) % len(r.records)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) sum(since time.Time) int64 {
	var total int64
	n := r.next
	if r.full {
		n = len(r.records)
	}
	for i := 0; i < n; i++ {
		rec := r.records[i]
		if !rec.at.Before(since) {
			total += rec.delta
		}
	}
	return total
}

func (r *ring) total() int64 {
	var total int64
	n := r.next
	if r.full {
		n = len(r.records)
	}
	for i := 0; i < n; i++ {
		total += r.records[i].delta
	}
	return total
}

// DefaultRingCapacity bounds how many committed/ignored events Recent can
// reconstruct; the window is seconds to minutes in practice, so this
// comfortably outlives any realistic burst of sync attempts.
const DefaultRingCapacity = 4096

// Metrics are the Prometheus gauges spec.md's supplemental observability
// section expects: current All and Recent counts, per Result.
type Metrics struct {
	Committed metrics.Gauge
	Ignored   metrics.Gauge
	Recent    metrics.Gauge // label result=committed|ignored
}

func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Committed: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rollback",
			Name:      "committed_total",
			Help:      "All-time count of committed rollbacks.",
		}, nil),
		Ignored: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rollback",
			Name:      "ignored_total",
			Help:      "All-time count of ignored rollback attempts.",
		}, nil),
		Recent: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rollback",
			Name:      "recent",
			Help:      "Count of rollbacks within the recent window, by result.",
		}, []string{"result"}),
	}
}

func NopMetrics() *Metrics {
	return &Metrics{
		Committed: discard.NewGauge(),
		Ignored:   discard.NewGauge(),
		Recent:    discard.NewGauge(),
	}
}

// Info is the shared, mutated-on-every-sync-attempt counter set a
// sync-handler bundle holds by reference.
type Info struct {
	mu      sync.Mutex
	window  time.Duration
	now     TimeSource
	metrics *Metrics

	all    map[Result]*ring
	pending int64
}

// New builds an Info whose Recent view only counts events within window
// of now(). Pass time.Now for production; tests should inject a fake
// clock to make Recent's decay deterministic.
func New(window time.Duration, now TimeSource, m *Metrics) *Info {
	if m == nil {
		m = NopMetrics()
	}
	return &Info{
		window:  window,
		now:     now,
		metrics: m,
		all: map[Result]*ring{
			Committed: newRing(DefaultRingCapacity),
			Ignored:   newRing(DefaultRingCapacity),
		},
	}
}

// RecordUndo increments the pending in-flight counter; called once per
// UndoBlock invocation during a sync attempt, before the attempt's
// outcome (commit or ignore) is known.
func (i *Info) RecordUndo() {
	i.mu.Lock()
	i.pending++
	i.mu.Unlock()
}

// Save folds the pending undo count accumulated during the attempt into
// the Committed ring: a pure extension (pending == 0) leaves Committed
// unchanged, and N undos before a commit add N to Committed. The
// pending count itself is discarded once folded.
func (i *Info) Save() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.all[Committed].push(i.now(), i.pending)
	i.pending = 0
	i.publishLocked()
}

// Reset discards the pending count and records one Ignored event. Unlike
// Save, which adds the number of undone blocks to Committed, Reset adds
// exactly one to Ignored per call.
func (i *Info) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pending = 0
	i.all[Ignored].push(i.now(), 1)
	i.publishLocked()
}

// PendingUndoCount reports how many UndoBlock invocations have
// accumulated for the in-flight attempt, for logging and metrics.
func (i *Info) PendingUndoCount() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pending
}

// Count returns the counter for (result, kind). Recent excludes events
// older than the configured window from now().
func (i *Info) Count(result Result, kind CounterKind) int64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	r := i.all[result]
	if r == nil {
		return 0
	}
	if kind == All {
		return r.total()
	}
	return r.sum(i.now().Add(-i.window))
}

func (i *Info) publishLocked() {
	i.metrics.Committed.Set(float64(i.all[Committed].total()))
	i.metrics.Ignored.Set(float64(i.all[Ignored].total()))
	since := i.now().Add(-i.window)
	i.metrics.Recent.With("result", "committed").Set(float64(i.all[Committed].sum(since)))
	i.metrics.Recent.With("result", "ignored").Set(float64(i.all[Ignored].sum(since)))
}
