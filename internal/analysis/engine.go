package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mbell/sensorium/internal/holtwinters"
	"github.com/mbell/sensorium/internal/models"
)

// Engine is the computation handle handed out by the Runtime. Analyses are
// pure functions over a Dataset; the engine exists so callers hold something
// with a verified lifecycle rather than calling package functions on an
// unchecked runtime.
type Engine struct{}

func (e *Engine) Descriptive(ds *Dataset) []DescriptiveRecord { return Descriptive(ds) }

func (e *Engine) Correlation(ds *Dataset) []CorrelationRecord { return Correlation(ds) }

func (e *Engine) HypothesisTests(ds *Dataset) []HypothesisRecord { return HypothesisTests(ds) }

func (e *Engine) SeasonalDecomposition(ds *Dataset) []SeasonalRecord {
	return SeasonalDecomposition(ds)
}

func (e *Engine) Forecasts(ds *Dataset) []ForecastRecord { return Forecasts(ds) }

// selfCheck exercises each numeric kernel on a small synthetic dataset. It is
// the second bootstrap stage: cheap enough to run at startup, thorough enough
// to catch a broken kernel before a caller does.
func (e *Engine) selfCheck(ctx context.Context) error {
	ds := syntheticDataset()

	if recs := e.Descriptive(ds); len(recs) == 0 {
		return fmt.Errorf("descriptive self-check produced no records")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if recs := e.Correlation(ds); len(recs) == 0 {
		return fmt.Errorf("correlation self-check produced no records")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := (holtwinters.Model{SeasonLength: 4, Trend: holtwinters.TrendAdditive}).Fit(
		[]float64{10, 12, 14, 12, 11, 13, 15, 13, 12, 14, 16, 14},
	); err != nil {
		return fmt.Errorf("forecasting self-check: %w", err)
	}
	return ctx.Err()
}

// syntheticDataset builds two tiny deployments with two days of readings.
func syntheticDataset() *Dataset {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := &Dataset{}
	for d := int64(1); d <= 2; d++ {
		s := Series{Deployment: models.Deployment{
			ID:        d,
			DeviceID:  fmt.Sprintf("selfcheck-%d", d),
			Name:      fmt.Sprintf("selfcheck %d", d),
			StartedAt: base,
		}}
		for i := 0; i < 16; i++ {
			temp := 20 + float64(i%4) + float64(d)
			hum := 55 - float64(i%4)
			s.Readings = append(s.Readings, models.Reading{
				ID:              int64(i + 1),
				DeviceID:        s.Deployment.DeviceID,
				TemperatureC:    &temp,
				HumidityPercent: &hum,
				CreatedAt:       base.Add(time.Duration(i) * 15 * time.Minute),
			})
		}
		ds.Series = append(ds.Series, s)
	}
	return ds
}
