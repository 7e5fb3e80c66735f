package analysis

import (
	"time"

	"github.com/mbell/sensorium/internal/holtwinters"
	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/sanitize"
)

const (
	forecastHorizon    = 96 // 24 hours of 15-minute steps
	forecastHistoryMax = 1200
)

// ForecastSeries is a charting series of timestamps and values.
type ForecastSeries struct {
	Timestamps []string  `json:"timestamps"`
	Values     []float64 `json:"values"`
}

// ForecastRecord is the report-style 24-hour forecast for one metric of one
// deployment, with the fitted model parameters for diagnostics.
type ForecastRecord struct {
	DeploymentID   int64          `json:"deployment_id"`
	DeploymentName string         `json:"deployment_name"`
	Metric         string         `json:"metric"`
	Unit           string         `json:"unit"`
	Alpha          float64        `json:"alpha"`
	Beta           float64        `json:"beta"`
	Gamma          float64        `json:"gamma"`
	AIC            float64        `json:"aic"`
	History        ForecastSeries `json:"history"`
	Forecast       ForecastSeries `json:"forecast"`
}

// Forecasts fits Holt-Winters with additive trend and daily seasonality per
// (deployment, metric) and forecasts 24 hours ahead. The trailing partial day
// is trimmed before fitting so a truncated final cycle does not bias the
// seasonal fit. Groups with less than two full days of regular data, or whose
// fit fails, are skipped rather than failing the request.
func Forecasts(ds *Dataset) []ForecastRecord {
	var records []ForecastRecord
	for _, s := range ds.Series {
		for _, metric := range models.Metrics {
			times, values := metricSeries(s.Readings, metric)
			gridTimes, gridValues := ResampleRegular(times, values, seasonalStep, seasonalGapLimit)

			// Keep full days only.
			trimmed := len(gridValues) - len(gridValues)%seasonalPeriod
			gridTimes, gridValues = gridTimes[:trimmed], gridValues[:trimmed]
			if len(gridValues) < 2*seasonalPeriod {
				continue
			}

			fit, err := holtwinters.Model{
				SeasonLength: seasonalPeriod,
				Trend:        holtwinters.TrendAdditive,
			}.Fit(gridValues)
			if err != nil {
				continue
			}

			records = append(records, buildForecastRecord(s.Deployment, metric, gridTimes, gridValues, fit))
		}
	}
	return records
}

func buildForecastRecord(dep models.Deployment, metric models.Metric, times []time.Time, values []float64, fit *holtwinters.Fit) ForecastRecord {
	rec := ForecastRecord{
		DeploymentID:   dep.ID,
		DeploymentName: dep.Name,
		Metric:         string(metric),
		Unit:           metricUnit(metric),
		Alpha:          sanitize.Float(fit.Alpha, 0),
		Beta:           sanitize.Float(fit.Beta, 0),
		Gamma:          sanitize.Float(fit.Gamma, 0),
		AIC:            sanitize.Float(fit.AIC, 0),
	}

	// The history shown for charting is subsampled from the full regular
	// series; the fit always uses every point.
	stride := subsampleStride(len(values), forecastHistoryMax)
	for i := 0; i < len(values); i += stride {
		rec.History.Timestamps = append(rec.History.Timestamps, times[i].UTC().Format(time.RFC3339))
		rec.History.Values = append(rec.History.Values, sanitize.Float(values[i], 0))
	}

	last := times[len(times)-1]
	for h, v := range fit.Forecast(forecastHorizon) {
		ts := last.Add(time.Duration(h+1) * seasonalStep)
		rec.Forecast.Timestamps = append(rec.Forecast.Timestamps, ts.UTC().Format(time.RFC3339))
		rec.Forecast.Values = append(rec.Forecast.Values, sanitize.Float(v, 0))
	}
	return rec
}
