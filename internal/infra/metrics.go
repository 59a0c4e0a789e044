package infra

import (
	"sort"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Metrics aggregates generation counters for the lifetime of the process.
// All methods are safe for concurrent use and tolerate a nil receiver so
// tests can pass an unconfigured orchestrator.
type Metrics struct {
	registry gometrics.Registry

	requests     gometrics.Counter
	successes    gometrics.Counter
	partials     gometrics.Counter
	failures     gometrics.Counter
	timeouts     gometrics.Counter
	imagesStored gometrics.Counter
	duration     gometrics.Timer
}

// NewMetrics builds a registry with the counters the generation flow marks.
func NewMetrics() *Metrics {
	registry := gometrics.NewRegistry()
	return &Metrics{
		registry:     registry,
		requests:     gometrics.GetOrRegisterCounter("generate.requests", registry),
		successes:    gometrics.GetOrRegisterCounter("generate.success", registry),
		partials:     gometrics.GetOrRegisterCounter("generate.partial", registry),
		failures:     gometrics.GetOrRegisterCounter("generate.failure", registry),
		timeouts:     gometrics.GetOrRegisterCounter("generate.timeout", registry),
		imagesStored: gometrics.GetOrRegisterCounter("images.stored", registry),
		duration:     gometrics.GetOrRegisterTimer("generate.duration", registry),
	}
}

// MarkRequest records one generation attempt against the named provider.
func (m *Metrics) MarkRequest(provider string) {
	if m == nil {
		return
	}
	m.requests.Inc(1)
	gometrics.GetOrRegisterCounter("provider."+provider+".requests", m.registry).Inc(1)
}

// MarkSuccess records a run that stored every requested image.
func (m *Metrics) MarkSuccess(images int) {
	if m == nil {
		return
	}
	m.successes.Inc(1)
	m.imagesStored.Inc(int64(images))
}

// MarkPartial records a run that stored some, but not all, images.
func (m *Metrics) MarkPartial(images int) {
	if m == nil {
		return
	}
	m.partials.Inc(1)
	m.imagesStored.Inc(int64(images))
}

// MarkFailure records a run that produced nothing.
func (m *Metrics) MarkFailure() {
	if m == nil {
		return
	}
	m.failures.Inc(1)
}

// MarkTimeout records a run abandoned because the provider never finished.
func (m *Metrics) MarkTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc(1)
}

// ObserveDuration records how long one full generation round trip took.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Update(d)
}

// Snapshot flattens the registry into a JSON-friendly map for the summary
// endpoint. Timer values are reported in milliseconds.
func (m *Metrics) Snapshot() map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}

	m.registry.Each(func(name string, metric any) {
		switch v := metric.(type) {
		case gometrics.Counter:
			out[name] = v.Count()
		case gometrics.Meter:
			snap := v.Snapshot()
			out[name] = map[string]any{
				"count":  snap.Count(),
				"rate1m": snap.Rate1(),
			}
		case gometrics.Timer:
			snap := v.Snapshot()
			out[name] = map[string]any{
				"count":   snap.Count(),
				"mean_ms": snap.Mean() / float64(time.Millisecond),
				"p95_ms":  snap.Percentile(0.95) / float64(time.Millisecond),
				"max_ms":  float64(snap.Max()) / float64(time.Millisecond),
			}
		}
	})

	return out
}

// MetricNames lists registered metric names in stable order, mainly for tests.
func (m *Metrics) MetricNames() []string {
	if m == nil {
		return nil
	}

	var names []string
	m.registry.Each(func(name string, _ any) {
		names = append(names, name)
	})
	sort.Strings(names)
	return names
}
