package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/sanitize"
)

const scatterMaxPoints = 500

// ScatterPoint is one aligned (temperature, humidity) observation for
// charting.
type ScatterPoint struct {
	TemperatureF    float64 `json:"temperature_f"`
	HumidityPercent float64 `json:"humidity_percent"`
}

// CorrelationRecord holds Pearson correlation and OLS regression of humidity
// on temperature for one deployment.
type CorrelationRecord struct {
	DeploymentID   int64          `json:"deployment_id"`
	DeploymentName string         `json:"deployment_name"`
	N              int            `json:"n"`
	R              float64        `json:"r"`
	R2             float64        `json:"r_squared"`
	PValue         float64        `json:"p_value"`
	Slope          float64        `json:"slope"`
	Intercept      float64        `json:"intercept"`
	Scatter        []ScatterPoint `json:"scatter"`
}

// Correlation aligns temperature and humidity on matching readings (inner
// join: readings missing either value are excluded) and computes Pearson's r,
// its two-sided p-value, and the humidity-on-temperature regression line.
// Fewer than 3 aligned points or a zero-variance series produces a degenerate
// sentinel (r=0, p=1, slope=0, intercept=mean humidity) rather than an error.
func Correlation(ds *Dataset) []CorrelationRecord {
	records := make([]CorrelationRecord, 0, len(ds.Series))
	for _, s := range ds.Series {
		records = append(records, correlateDeployment(s))
	}
	return records
}

func correlateDeployment(s Series) CorrelationRecord {
	var temps, hums []float64
	for _, r := range s.Readings {
		if r.TemperatureC == nil || r.HumidityPercent == nil {
			continue
		}
		temps = append(temps, models.CToF(*r.TemperatureC))
		hums = append(hums, *r.HumidityPercent)
	}
	n := len(temps)

	rec := CorrelationRecord{
		DeploymentID:   s.Deployment.ID,
		DeploymentName: s.Deployment.Name,
		N:              n,
		Scatter:        subsampleScatter(temps, hums),
	}

	tempVar := stat.Variance(temps, nil)
	humVar := stat.Variance(hums, nil)
	if n < 3 || tempVar == 0 || humVar == 0 {
		// No correlation computable: a deliberate sentinel, not an error.
		rec.PValue = 1
		if n > 0 {
			rec.Intercept = sanitize.Float(stat.Mean(hums, nil), 0)
		}
		return rec
	}

	r := stat.Correlation(temps, hums, nil)
	intercept, slope := stat.LinearRegression(temps, hums, nil, false)

	rec.R = sanitize.Float(r, 0)
	rec.R2 = sanitize.Float(r*r, 0)
	rec.Slope = sanitize.Float(slope, 0)
	rec.Intercept = sanitize.Float(intercept, 0)
	rec.PValue = pearsonPValue(rec.R, n)
	return rec
}

// pearsonPValue computes the two-sided p-value of Pearson's r under the null
// of zero correlation using the t distribution with n-2 degrees of freedom.
func pearsonPValue(r float64, n int) float64 {
	if r*r >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return sanitize.Probability(2 * dist.CDF(-math.Abs(t)))
}

// subsampleScatter thins the aligned series with a fixed stride so repeated
// requests over the same data return the same points.
func subsampleScatter(temps, hums []float64) []ScatterPoint {
	stride := subsampleStride(len(temps), scatterMaxPoints)
	out := make([]ScatterPoint, 0, scatterMaxPoints)
	for i := 0; i < len(temps); i += stride {
		out = append(out, ScatterPoint{
			TemperatureF:    sanitize.Float(temps[i], 0),
			HumidityPercent: sanitize.Float(hums[i], 0),
		})
	}
	return out
}
