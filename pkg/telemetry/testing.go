// ABOUTME: Telemetry helpers for tests: a disabled instance and an in-memory recorder
// ABOUTME: The recorder keeps counter totals and histogram samples so tests can assert on instrumentation

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewForTesting returns a no-op telemetry instance for use in tests.
func NewForTesting() Telemetry {
	return NewNoop()
}

// Recorder is a Telemetry that keeps everything in memory.
type Recorder struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string][]float64
	labels     map[string]map[string]int64
	spans      []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
		labels:     make(map[string]map[string]int64),
	}
}

// RecordHistogram stores the sample.
func (r *Recorder) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[name] = append(r.histograms[name], value)
}

// RecordCounter adds to the counter total and to a per-attribute total.
func (r *Recorder) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += value
	for _, kv := range attrs {
		m := r.labels[name]
		if m == nil {
			m = make(map[string]int64)
			r.labels[name] = m
		}
		m[string(kv.Key)+"="+kv.Value.Emit()] += value
	}
}

// StartSpan records the span name and returns the context unchanged.
func (r *Recorder) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return nil
}

// Counter returns the total recorded for name.
func (r *Recorder) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// CounterWith returns the total recorded for name with the attribute key=value.
func (r *Recorder) CounterWith(name, key, value string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.labels[name][key+"="+value]
}

// Histogram returns the samples recorded for name.
func (r *Recorder) Histogram(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[name]...)
}

// Spans returns the names of the spans started so far.
func (r *Recorder) Spans() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spans...)
}
