package models

import (
	"time"
)

// Reading is a single raw sensor observation. Readings are immutable once
// stored; ordering is by CreatedAt with ID as the tie-breaker.
type Reading struct {
	ID              int64     `json:"id"`
	DeviceID        string    `json:"device_id"`
	TemperatureC    *float64  `json:"temperature_celsius"`
	HumidityPercent *float64  `json:"humidity_percent"`
	CreatedAt       time.Time `json:"created_at"`
}

// Deployment binds a device to a location for a bounded period.
// EndedAt == nil means the deployment is still active and its window
// extends to "now".
type Deployment struct {
	ID        int64      `json:"id"`
	DeviceID  string     `json:"device_id"`
	Name      string     `json:"name"`
	Location  string     `json:"location"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// Window returns the deployment's valid time range, substituting now for an
// open end.
func (d Deployment) Window(now time.Time) (time.Time, time.Time) {
	end := now
	if d.EndedAt != nil {
		end = *d.EndedAt
	}
	return d.StartedAt, end
}

// BucketedSample is a server-side aggregate of readings over a fixed-width
// time slot.
type BucketedSample struct {
	BucketTS       time.Time `json:"bucket_ts"`
	DeviceID       string    `json:"device_id"`
	TemperatureAvg *float64  `json:"temperature_avg"`
	HumidityAvg    *float64  `json:"humidity_avg"`
	ReadingCount   int       `json:"reading_count"`
}

// AnalysisKind names one of the five analyses the pipeline can run.
type AnalysisKind string

const (
	KindDescriptive AnalysisKind = "descriptive"
	KindCorrelation AnalysisKind = "correlation"
	KindHypothesis  AnalysisKind = "hypothesis_test"
	KindSeasonal    AnalysisKind = "seasonal_decomposition"
	KindForecasting AnalysisKind = "forecasting"
)

// AnalysisOrder is the fixed execution order for requested analyses.
var AnalysisOrder = []AnalysisKind{
	KindDescriptive,
	KindCorrelation,
	KindHypothesis,
	KindSeasonal,
	KindForecasting,
}

// Valid reports whether k is a known analysis kind.
func (k AnalysisKind) Valid() bool {
	switch k {
	case KindDescriptive, KindCorrelation, KindHypothesis, KindSeasonal, KindForecasting:
		return true
	}
	return false
}

// AnalysisRequest asks for a set of analyses over one or more deployments
// within a time window.
type AnalysisRequest struct {
	DeploymentIDs []int64        `json:"deployment_ids"`
	Start         time.Time      `json:"start"`
	End           time.Time      `json:"end"`
	Analyses      []AnalysisKind `json:"analyses"`
}

// Metric names one of the two measured quantities. Every per-deployment
// analysis except the pairwise hypothesis test runs once per metric.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
)

// Metrics lists the metrics in reporting order.
var Metrics = []Metric{MetricTemperature, MetricHumidity}

// ForecastPoint is one predicted value at a point in time.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DailyForecast is a one-day high/low band for the dashboard.
type DailyForecast struct {
	Date      string  `json:"date"`
	DayName   string  `json:"day_name"`
	TempHighF float64 `json:"temp_high_f"`
	TempLowF  float64 `json:"temp_low_f"`
}

// HourlyForecast is a single short-horizon forecast point for the dashboard.
type HourlyForecast struct {
	ISO       string  `json:"iso"`
	TempF     float64 `json:"temp_f"`
	HourLabel string  `json:"hour_label"`
}

// CToF converts a Celsius temperature to the display unit.
func CToF(c float64) float64 {
	return c*9/5 + 32
}
