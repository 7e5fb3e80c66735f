package analysis

import (
	"time"

	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/sanitize"
)

const (
	seasonalStep     = 15 * time.Minute
	seasonalPeriod   = 96 // slots per day on the 15-minute grid
	seasonalGapLimit = 4  // up to one hour of interpolation
	seasonalMaxOut   = 1000
)

// SeasonalRecord is the additive classical decomposition of one metric of one
// deployment. Trend and Residual are nil at the series edges where the
// centered moving average is undefined.
type SeasonalRecord struct {
	DeploymentID   int64      `json:"deployment_id"`
	DeploymentName string     `json:"deployment_name"`
	Metric         string     `json:"metric"`
	Unit           string     `json:"unit"`
	Period         int        `json:"period"`
	Timestamps     []string   `json:"timestamps"`
	Observed       []float64  `json:"observed"`
	Trend          []*float64 `json:"trend"`
	Seasonal       []float64  `json:"seasonal"`
	Residual       []*float64 `json:"residual"`
}

// SeasonalDecomposition resamples each (deployment, metric) series to a
// 15-minute grid and runs additive classical decomposition with a daily
// period. Groups without two full periods of regular data are skipped
// silently; absence means insufficient data, not failure.
func SeasonalDecomposition(ds *Dataset) []SeasonalRecord {
	var records []SeasonalRecord
	for _, s := range ds.Series {
		for _, metric := range models.Metrics {
			times, values := metricSeries(s.Readings, metric)
			gridTimes, gridValues := ResampleRegular(times, values, seasonalStep, seasonalGapLimit)
			if len(gridValues) < 2*seasonalPeriod {
				continue
			}
			records = append(records, decompose(s.Deployment, metric, gridTimes, gridValues))
		}
	}
	return records
}

func decompose(dep models.Deployment, metric models.Metric, times []time.Time, observed []float64) SeasonalRecord {
	n := len(observed)
	m := seasonalPeriod
	half := m / 2

	// Centered moving average for an even period: a window of m+1 points with
	// half weight on the two outermost.
	trend := make([]*float64, n)
	for i := half; i < n-half; i++ {
		sum := 0.5*observed[i-half] + 0.5*observed[i+half]
		for j := i - half + 1; j < i+half; j++ {
			sum += observed[j]
		}
		v := sanitize.Float(sum/float64(m), 0)
		trend[i] = &v
	}

	// Seasonal index: detrended values averaged per phase, then centered.
	phaseSums := make([]float64, m)
	phaseCounts := make([]int, m)
	for i := range observed {
		if trend[i] == nil {
			continue
		}
		phase := i % m
		phaseSums[phase] += observed[i] - *trend[i]
		phaseCounts[phase]++
	}
	index := make([]float64, m)
	var indexMean float64
	for j := range index {
		if phaseCounts[j] > 0 {
			index[j] = phaseSums[j] / float64(phaseCounts[j])
		}
		indexMean += index[j]
	}
	indexMean /= float64(m)
	for j := range index {
		index[j] = sanitize.Float(index[j]-indexMean, 0)
	}

	seasonal := make([]float64, n)
	residual := make([]*float64, n)
	for i := range observed {
		seasonal[i] = index[i%m]
		if trend[i] != nil {
			v := sanitize.Float(observed[i]-*trend[i]-seasonal[i], 0)
			residual[i] = &v
		}
	}

	// Subsample all series with a shared stride so points stay aligned.
	stride := subsampleStride(n, seasonalMaxOut)
	rec := SeasonalRecord{
		DeploymentID:   dep.ID,
		DeploymentName: dep.Name,
		Metric:         string(metric),
		Unit:           metricUnit(metric),
		Period:         m,
	}
	for i := 0; i < n; i += stride {
		rec.Timestamps = append(rec.Timestamps, times[i].UTC().Format(time.RFC3339))
		rec.Observed = append(rec.Observed, sanitize.Float(observed[i], 0))
		rec.Trend = append(rec.Trend, trend[i])
		rec.Seasonal = append(rec.Seasonal, seasonal[i])
		rec.Residual = append(rec.Residual, residual[i])
	}
	return rec
}
