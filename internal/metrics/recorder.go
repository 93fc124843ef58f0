// Package metrics provides process-wide counters for the ledger service.
// The recorder is constructed explicitly and passed to each component rather
// than living in package-level globals, so tests can reset it in isolation.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
)

// Statistics query and awaiting query are the two cached operations.
const (
	OpStats    = "stats"
	OpAwaiting = "awaiting"
)

// OpCounters is a point-in-time snapshot of one operation's counters.
type OpCounters struct {
	Requests     uint64 `json:"requests"`
	CacheHits    uint64 `json:"cacheHits"`
	CacheMisses  uint64 `json:"cacheMisses"`
	BackendReads uint64 `json:"backendReads"`
}

type opCounters struct {
	requests     atomic.Uint64
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
	backendReads atomic.Uint64
}

// Recorder holds per-operation counters plus global upload counters.
type Recorder struct {
	ops           map[string]*opCounters
	uploadBatches atomic.Uint64
	uploadEvents  atomic.Uint64
	uploadBytes   atomic.Uint64
}

// NewRecorder creates a recorder tracking the given operations.
func NewRecorder(ops ...string) *Recorder {
	r := &Recorder{ops: make(map[string]*opCounters, len(ops))}
	for _, op := range ops {
		r.ops[op] = &opCounters{}
	}
	return r
}

func (r *Recorder) op(name string) *opCounters {
	if c, ok := r.ops[name]; ok {
		return c
	}
	// Unknown operations get a throwaway counter instead of a panic.
	return &opCounters{}
}

func (r *Recorder) Request(op string)     { r.op(op).requests.Add(1) }
func (r *Recorder) CacheHit(op string)    { r.op(op).cacheHits.Add(1) }
func (r *Recorder) CacheMiss(op string)   { r.op(op).cacheMisses.Add(1) }
func (r *Recorder) BackendRead(op string) { r.op(op).backendReads.Add(1) }

// Upload records one accepted upload batch.
func (r *Recorder) Upload(events, bytes int) {
	r.uploadBatches.Add(1)
	r.uploadEvents.Add(uint64(events))
	r.uploadBytes.Add(uint64(bytes))
}

// Op returns a snapshot of one operation's counters.
func (r *Recorder) Op(name string) OpCounters {
	c := r.op(name)
	return OpCounters{
		Requests:     c.requests.Load(),
		CacheHits:    c.cacheHits.Load(),
		CacheMisses:  c.cacheMisses.Load(),
		BackendReads: c.backendReads.Load(),
	}
}

// Uploads returns the global upload counters: batches, events, bytes.
func (r *Recorder) Uploads() (batches, events, bytes uint64) {
	return r.uploadBatches.Load(), r.uploadEvents.Load(), r.uploadBytes.Load()
}

// Reset zeroes every counter. Intended for test isolation and the debug
// reset endpoint only.
func (r *Recorder) Reset() {
	for _, c := range r.ops {
		c.requests.Store(0)
		c.cacheHits.Store(0)
		c.cacheMisses.Store(0)
		c.backendReads.Store(0)
	}
	r.uploadBatches.Store(0)
	r.uploadEvents.Store(0)
	r.uploadBytes.Store(0)
}

// ServeHTTP exposes the counters in Prometheus text format.
func (r *Recorder) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "# TYPE ledger_op_requests_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "ledger_op_requests_total{op=%q} %d\n", name, r.op(name).requests.Load())
	}
	fmt.Fprintf(w, "# TYPE ledger_op_cache_hits_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "ledger_op_cache_hits_total{op=%q} %d\n", name, r.op(name).cacheHits.Load())
	}
	fmt.Fprintf(w, "# TYPE ledger_op_cache_misses_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "ledger_op_cache_misses_total{op=%q} %d\n", name, r.op(name).cacheMisses.Load())
	}
	fmt.Fprintf(w, "# TYPE ledger_op_backend_reads_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "ledger_op_backend_reads_total{op=%q} %d\n", name, r.op(name).backendReads.Load())
	}

	batches, events, bytes := r.Uploads()
	fmt.Fprintf(w, "# TYPE ledger_upload_batches_total counter\nledger_upload_batches_total %d\n", batches)
	fmt.Fprintf(w, "# TYPE ledger_upload_events_total counter\nledger_upload_events_total %d\n", events)
	fmt.Fprintf(w, "# TYPE ledger_upload_bytes_total counter\nledger_upload_bytes_total %d\n", bytes)
}
