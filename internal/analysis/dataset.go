package analysis

import (
	"sort"
	"time"

	"github.com/mbell/sensorium/internal/models"
)

// Series is the normalized reading table for one deployment: readings sorted
// ascending by (created_at, id), paired with the deployment metadata every
// analysis needs for labeling.
type Series struct {
	Deployment models.Deployment
	Readings   []models.Reading
}

// Dataset is the input to every analysis: one Series per resolved deployment,
// in request order. Deployments that could not be resolved are absent rather
// than represented by an error.
type Dataset struct {
	Series []Series
}

// sortReadings orders readings ascending by created_at with id breaking ties.
func sortReadings(readings []models.Reading) {
	sort.Slice(readings, func(i, j int) bool {
		if readings[i].CreatedAt.Equal(readings[j].CreatedAt) {
			return readings[i].ID < readings[j].ID
		}
		return readings[i].CreatedAt.Before(readings[j].CreatedAt)
	})
}

// metricSeries extracts the timestamps and values for one metric, skipping
// readings where the metric is missing. Temperature is converted to the
// display unit (Fahrenheit).
func metricSeries(readings []models.Reading, metric models.Metric) ([]time.Time, []float64) {
	times := make([]time.Time, 0, len(readings))
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		switch metric {
		case models.MetricTemperature:
			if r.TemperatureC != nil {
				times = append(times, r.CreatedAt)
				values = append(values, models.CToF(*r.TemperatureC))
			}
		case models.MetricHumidity:
			if r.HumidityPercent != nil {
				times = append(times, r.CreatedAt)
				values = append(values, *r.HumidityPercent)
			}
		}
	}
	return times, values
}

// metricUnit returns the display unit label for a metric.
func metricUnit(metric models.Metric) string {
	if metric == models.MetricTemperature {
		return "°F"
	}
	return "%"
}
