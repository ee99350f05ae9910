// Package metrics exports Prometheus metrics of statement imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bankimport/internal/importer"
)

// Recorder holds the import metrics of one registry. It implements
// importer.Observer.
type Recorder struct {
	registry        *prometheus.Registry
	imports         *prometheus.CounterVec
	rowsParsed      *prometheus.CounterVec
	rowsDropped     *prometheus.CounterVec
	dateFallbacks   prometheus.Counter
	classifications *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	taxIDUpdates    prometheus.Counter
	duration        prometheus.Histogram
}

// New registers the import metrics on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bankimport_imports_total",
			Help: "Statement imports by detected format.",
		}, []string{"format"}),
		rowsParsed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bankimport_rows_parsed_total",
			Help: "Transactions extracted from statements.",
		}, []string{"format"}),
		rowsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bankimport_rows_dropped_total",
			Help: "Statement records dropped during parsing, by reason.",
		}, []string{"reason"}),
		dateFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "bankimport_date_fallbacks_total",
			Help: "Transactions whose date could not be parsed and fell back to the import date.",
		}),
		classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bankimport_classifications_total",
			Help: "Imported transactions by reconciliation classification.",
		}, []string{"classification"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bankimport_counterparty_resolutions_total",
			Help: "Counterparty resolutions by matching rule.",
		}, []string{"source"}),
		taxIDUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "bankimport_client_tax_id_updates_total",
			Help: "Client tax IDs learned from statements.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankimport_import_duration_seconds",
			Help:    "Time to classify one statement.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		}),
	}
}

// ObserveImport records one finished import.
func (r *Recorder) ObserveImport(res *importer.Result, elapsed time.Duration) {
	format := string(res.Format)
	r.imports.WithLabelValues(format).Inc()
	r.rowsParsed.WithLabelValues(format).Add(float64(res.Diagnostics.Parsed))
	for reason, n := range res.Diagnostics.Dropped {
		r.rowsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	r.dateFallbacks.Add(float64(res.Diagnostics.DateFallbacks))

	for _, rec := range res.Records {
		r.classifications.WithLabelValues(string(rec.Reconciliation.Classification)).Inc()
		r.resolutions.WithLabelValues(string(rec.Counterparty.Source)).Inc()
	}
	for _, u := range res.TaxIDUpdates {
		if u.Saved {
			r.taxIDUpdates.Inc()
		}
	}
	r.duration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
