package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private prometheus registry so tests and multiple binaries
// never collide on the global one. A nil *Registry is a no-op.
type Registry struct {
	reg *prometheus.Registry

	RefreshRuns      *prometheus.CounterVec
	RecordsExtracted *prometheus.CounterVec
	RecordsInserted  *prometheus.CounterVec
	LowYield         *prometheus.CounterVec
	RefreshDuration  *prometheus.HistogramVec
	LastSuccess      *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_refresh_runs_total",
		Help: "Refresh outcomes per source.",
	}, []string{"source", "status", "reason"})
	extracted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_records_extracted_total",
	}, []string{"source"})
	inserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_records_inserted_total",
	}, []string{"source"})
	lowYield := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_low_yield_total",
		Help: "Fresh extractions that returned far fewer items than the previous run.",
	}, []string{"source"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricewatch_extract_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pricewatch_last_success_timestamp_seconds",
	}, []string{"source"})

	r.MustRegister(runs, extracted, inserted, lowYield, duration, lastSuccess)
	return &Registry{
		reg:              r,
		RefreshRuns:      runs,
		RecordsExtracted: extracted,
		RecordsInserted:  inserted,
		LowYield:         lowYield,
		RefreshDuration:  duration,
		LastSuccess:      lastSuccess,
	}
}

func (r *Registry) ObserveRun(source, status, reason string) {
	if r == nil {
		return
	}
	r.RefreshRuns.WithLabelValues(source, status, reason).Inc()
}

func (r *Registry) ObserveExtraction(source string, extracted, inserted int, seconds float64) {
	if r == nil {
		return
	}
	r.RecordsExtracted.WithLabelValues(source).Add(float64(extracted))
	r.RecordsInserted.WithLabelValues(source).Add(float64(inserted))
	r.RefreshDuration.WithLabelValues(source).Observe(seconds)
}

func (r *Registry) ObserveSuccess(source string, unixSeconds float64) {
	if r == nil {
		return
	}
	r.LastSuccess.WithLabelValues(source).Set(unixSeconds)
}

func (r *Registry) ObserveLowYield(source string) {
	if r == nil {
		return
	}
	r.LowYield.WithLabelValues(source).Inc()
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}
