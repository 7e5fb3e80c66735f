package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorium_analyses_total",
			Help: "Total analyses executed, by kind and status",
		},
		[]string{"kind", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensorium_analysis_duration_seconds",
			Help:    "Analysis execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ReadingsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorium_readings_fetched_total",
			Help: "Readings retrieved for analysis, by fetch mode",
		},
		[]string{"mode"},
	)

	ForecastRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorium_forecast_runs_total",
			Help: "Dashboard forecast runs, by variant and status",
		},
		[]string{"variant", "status"},
	)

	HubAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorium_hub_api_calls_total",
			Help: "Total sensor hub API calls",
		},
		[]string{"endpoint", "status"},
	)

	HubAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensorium_hub_api_latency_seconds",
			Help:    "Sensor hub API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorium_readings_ingested_total",
			Help: "Total readings successfully ingested",
		},
		[]string{"device"},
	)
)
