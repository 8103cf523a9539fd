// Package metrics holds the Prometheus collectors shared by the abslake
// binaries. Collectors are registered on the default registry so any binary
// that serves promhttp exposes whichever of them it touches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildInfo is set to 1 with the binary's version labels at startup.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "abslake_build_info",
		Help: "Build information of the running binary.",
	}, []string{"version", "commit", "date"})

	// ExtractRows counts rows fetched from the ABS Data API per dataflow.
	ExtractRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abslake_extract_rows_total",
		Help: "Rows fetched from the ABS Data API, by dataflow.",
	}, []string{"dataflow"})

	// PipelineRuns counts pipeline executions by pipeline and outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abslake_pipeline_runs_total",
		Help: "Pipeline executions, by pipeline and status.",
	}, []string{"pipeline", "status"})

	// DuplicateGeographies reports the anomaly count from the latest run:
	// geography ids that mapped to more than one lookup row.
	DuplicateGeographies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "abslake_duplicate_geographies",
		Help: "Geography ids with conflicting lookup rows in the latest pipeline run.",
	}, []string{"pipeline"})

	// HTTPRequests counts catalog server requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abslake_http_requests_total",
		Help: "Catalog server requests, by route and status.",
	}, []string{"route", "status"})
)
