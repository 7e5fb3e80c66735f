package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/sanitize"
)

// significanceLevel is the fixed threshold for the significance call.
const significanceLevel = 0.05

// GroupSummary carries the per-group statistics needed to render a
// comparison independent of the test result.
type GroupSummary struct {
	DeploymentID   int64   `json:"deployment_id"`
	DeploymentName string  `json:"deployment_name"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	N              int     `json:"n"`
}

// HypothesisRecord is the result of one Welch's t-test between two
// deployments on one metric.
type HypothesisRecord struct {
	Metric           string       `json:"metric"`
	Unit             string       `json:"unit"`
	GroupA           GroupSummary `json:"group_a"`
	GroupB           GroupSummary `json:"group_b"`
	TStatistic       float64      `json:"t_statistic"`
	PValue           float64      `json:"p_value"`
	DegreesOfFreedom float64      `json:"degrees_of_freedom"`
	CohensD          float64      `json:"cohens_d"`
	Significant      bool         `json:"significant"`
}

// HypothesisTests runs Welch's two-sample t-test for every unordered pair of
// deployments, per metric. Pairs where either group has n <= 1 are skipped,
// not reported as errors.
func HypothesisTests(ds *Dataset) []HypothesisRecord {
	var records []HypothesisRecord
	for i := 0; i < len(ds.Series); i++ {
		for j := i + 1; j < len(ds.Series); j++ {
			for _, metric := range models.Metrics {
				_, a := metricSeries(ds.Series[i].Readings, metric)
				_, b := metricSeries(ds.Series[j].Readings, metric)
				if len(a) <= 1 || len(b) <= 1 {
					continue
				}
				records = append(records, welchTest(
					metric,
					ds.Series[i].Deployment, a,
					ds.Series[j].Deployment, b,
				))
			}
		}
	}
	return records
}

func welchTest(metric models.Metric, depA models.Deployment, a []float64, depB models.Deployment, b []float64) HypothesisRecord {
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	nA, nB := float64(len(a)), float64(len(b))

	rec := HypothesisRecord{
		Metric: string(metric),
		Unit:   metricUnit(metric),
		GroupA: GroupSummary{
			DeploymentID:   depA.ID,
			DeploymentName: depA.Name,
			Mean:           sanitize.Float(meanA, 0),
			StdDev:         sanitize.Float(math.Sqrt(varA), 0),
			N:              len(a),
		},
		GroupB: GroupSummary{
			DeploymentID:   depB.ID,
			DeploymentName: depB.Name,
			Mean:           sanitize.Float(meanB, 0),
			StdDev:         sanitize.Float(math.Sqrt(varB), 0),
			N:              len(b),
		},
	}

	seA := varA / nA
	seB := varB / nB
	se := seA + seB
	if se == 0 {
		// Both groups are constant, so the t statistic is undefined even when
		// the means differ. Report the neutral sentinel values and leave the
		// group summaries to carry any gap between the means.
		rec.PValue = 1
		rec.Significant = false
		return rec
	}

	t := (meanA - meanB) / math.Sqrt(se)
	// Welch-Satterthwaite degrees of freedom.
	df := se * se / (seA*seA/(nA-1) + seB*seB/(nB-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := sanitize.Probability(2 * dist.CDF(-math.Abs(t)))

	rec.TStatistic = sanitize.Float(t, 0)
	rec.DegreesOfFreedom = sanitize.Float(df, 0)
	rec.PValue = p
	rec.CohensD = cohensD(meanA, meanB, varA, varB)
	rec.Significant = p < significanceLevel
	return rec
}

// cohensD computes the effect size using the simple average of the two
// variances, guarding against a zero denominator.
func cohensD(meanA, meanB, varA, varB float64) float64 {
	pooled := math.Sqrt((varA + varB) / 2)
	if pooled == 0 {
		return 0
	}
	return sanitize.Float(math.Abs(meanA-meanB)/pooled, 0)
}
