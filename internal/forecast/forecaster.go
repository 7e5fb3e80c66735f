// Package forecast is the dashboard's short-horizon forecasting pipeline.
// It is deliberately narrower than the report-style forecasting analysis:
// hourly resolution, a damped trend, and plausibility clipping tuned for
// short volatile histories.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mbell/sensorium/internal/analysis"
	"github.com/mbell/sensorium/internal/holtwinters"
	"github.com/mbell/sensorium/internal/metrics"
	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/sanitize"
)

const (
	hourlySeason     = 24
	hourlyGapLimit   = 3 // interpolate up to 3 missing hours
	hourlyMinHistory = 48
	hourlyHorizon    = 24
	dailyHorizon     = 7 * 24

	hourlyHistoryDays = 14
	dailyHistoryDays  = 180

	// Plausibility band: historical q05/q95 padded by clipMargin, widened to
	// at least minQuantileSpread before padding. Guards against smoothing
	// overshoot on short or volatile histories.
	clipMargin        = 15.0
	minQuantileSpread = 10.0
)

// SampleSource provides hourly-bucketed history for one device.
type SampleSource interface {
	BucketedSamples(ctx context.Context, start, end time.Time, bucketSeconds int, deviceID string, maxRows int) ([]models.BucketedSample, error)
}

// Forecaster produces the dashboard's hourly and daily temperature forecasts.
type Forecaster struct {
	src SampleSource
	loc *time.Location
	now func() time.Time
}

// New wires a sample source and a display timezone. now is swappable for
// tests; nil means time.Now.
func New(src SampleSource, loc *time.Location, now func() time.Time) *Forecaster {
	if now == nil {
		now = time.Now
	}
	return &Forecaster{src: src, loc: loc, now: now}
}

// Hourly forecasts the next 24 hours of temperature for a device. Returns an
// empty slice when the device lacks 48 hours of regular history. Every value
// is clipped to the plausibility band derived from the history, and the first
// point is labeled "Now" to anchor the chart.
func (f *Forecaster) Hourly(ctx context.Context, deviceID string) ([]models.HourlyForecast, error) {
	times, values, err := f.hourlySeries(ctx, deviceID, hourlyHistoryDays)
	if err != nil {
		metrics.ForecastRuns.WithLabelValues("hourly", "error").Inc()
		return nil, err
	}
	if len(values) < hourlyMinHistory {
		metrics.ForecastRuns.WithLabelValues("hourly", "insufficient").Inc()
		return []models.HourlyForecast{}, nil
	}

	forecast, err := fitAndForecast(values, hourlyHorizon)
	if err != nil {
		if errors.Is(err, holtwinters.ErrTooShort) {
			metrics.ForecastRuns.WithLabelValues("hourly", "insufficient").Inc()
			return []models.HourlyForecast{}, nil
		}
		metrics.ForecastRuns.WithLabelValues("hourly", "error").Inc()
		return nil, err
	}

	lo, hi := plausibilityBand(values)
	last := times[len(times)-1]
	out := make([]models.HourlyForecast, 0, len(forecast))
	for h, v := range forecast {
		ts := last.Add(time.Duration(h+1) * time.Hour)
		label := ts.In(f.loc).Format("3PM")
		if h == 0 {
			label = "Now"
		}
		out = append(out, models.HourlyForecast{
			ISO:       ts.UTC().Format(time.RFC3339),
			TempF:     clip(sanitize.Float(v, lo), lo, hi),
			HourLabel: label,
		})
	}
	metrics.ForecastRuns.WithLabelValues("hourly", "ok").Inc()
	return out, nil
}

// Daily derives a 7-day high/low forecast from a 168-step hourly fit over
// up to 180 days of history. Only complete forecast days survive aggregation,
// so the result is empty or exactly whole days.
func (f *Forecaster) Daily(ctx context.Context, deviceID string) ([]models.DailyForecast, error) {
	times, values, err := f.hourlySeries(ctx, deviceID, dailyHistoryDays)
	if err != nil {
		metrics.ForecastRuns.WithLabelValues("daily", "error").Inc()
		return nil, err
	}
	if len(values) < hourlyMinHistory {
		metrics.ForecastRuns.WithLabelValues("daily", "insufficient").Inc()
		return []models.DailyForecast{}, nil
	}

	forecast, err := fitAndForecast(values, dailyHorizon)
	if err != nil {
		if errors.Is(err, holtwinters.ErrTooShort) {
			metrics.ForecastRuns.WithLabelValues("daily", "insufficient").Inc()
			return []models.DailyForecast{}, nil
		}
		metrics.ForecastRuns.WithLabelValues("daily", "error").Inc()
		return nil, err
	}

	last := times[len(times)-1]
	points := make([]models.ForecastPoint, 0, len(forecast))
	for h, v := range forecast {
		points = append(points, models.ForecastPoint{
			Timestamp: last.Add(time.Duration(h+1) * time.Hour),
			Value:     sanitize.Float(v, 0),
		})
	}
	metrics.ForecastRuns.WithLabelValues("daily", "ok").Inc()
	return AggregateDaily(points, f.loc), nil
}

// hourlySeries loads the device's bucketed history and regularizes it onto
// the hourly grid in display units.
func (f *Forecaster) hourlySeries(ctx context.Context, deviceID string, historyDays int) ([]time.Time, []float64, error) {
	now := f.now()
	samples, err := f.src.BucketedSamples(ctx, now.AddDate(0, 0, -historyDays), now, 3600, deviceID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch bucketed samples for %s: %w", deviceID, err)
	}

	times := make([]time.Time, 0, len(samples))
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.TemperatureAvg == nil {
			continue
		}
		times = append(times, s.BucketTS)
		values = append(values, models.CToF(*s.TemperatureAvg))
	}
	gridTimes, gridValues := analysis.ResampleRegular(times, values, time.Hour, hourlyGapLimit)
	return gridTimes, gridValues, nil
}

// fitAndForecast fits a damped-trend Holt-Winters model with daily
// seasonality, falling back to a trend-free model when the damped fit fails.
func fitAndForecast(values []float64, horizon int) ([]float64, error) {
	fit, err := holtwinters.Model{SeasonLength: hourlySeason, Trend: holtwinters.TrendDamped}.Fit(values)
	if err != nil {
		fit, err = holtwinters.Model{SeasonLength: hourlySeason, Trend: holtwinters.TrendNone}.Fit(values)
		if err != nil {
			return nil, err
		}
	}
	return fit.Forecast(horizon), nil
}

// plausibilityBand derives the clip range from the historical 5th/95th
// percentiles.
func plausibilityBand(values []float64) (float64, float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q05 := analysis.Percentile(sorted, 0.05)
	q95 := analysis.Percentile(sorted, 0.95)
	if spread := q95 - q05; spread < minQuantileSpread {
		pad := (minQuantileSpread - spread) / 2
		q05 -= pad
		q95 += pad
	}
	return q05 - clipMargin, q95 + clipMargin
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
