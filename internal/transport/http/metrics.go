package http

import (
	gohttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carebase/internal/services"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carebase",
		Name:      "imports_total",
		Help:      "Completed sheet imports by kind.",
	}, []string{"kind"})

	importRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carebase",
		Name:      "import_rows_total",
		Help:      "Ingested rows by kind and outcome.",
	}, []string{"kind", "outcome"})

	statsComputedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carebase",
		Name:      "stats_computed_total",
		Help:      "Statistics computations served.",
	})
)

// recordImport updates the import counters from a finished summary.
func recordImport(kind string, summary *services.ImportSummary) {
	importsTotal.WithLabelValues(kind).Inc()
	importRowsTotal.WithLabelValues(kind, "created").Add(float64(summary.Created))
	importRowsTotal.WithLabelValues(kind, "updated").Add(float64(summary.Updated))
	importRowsTotal.WithLabelValues(kind, "errored").Add(float64(summary.Errored))
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() gohttp.Handler {
	return promhttp.Handler()
}
