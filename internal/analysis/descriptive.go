package analysis

import (
	"gonum.org/v1/gonum/stat"

	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/sanitize"
)

const histogramBins = 20

// Histogram is a fixed-bin histogram over a metric's values. Edges has one
// more entry than Counts.
type Histogram struct {
	Counts []int     `json:"counts"`
	Edges  []float64 `json:"bin_edges"`
}

// DescriptiveRecord summarizes one metric of one deployment.
type DescriptiveRecord struct {
	DeploymentID   int64     `json:"deployment_id"`
	DeploymentName string    `json:"deployment_name"`
	Metric         string    `json:"metric"`
	Unit           string    `json:"unit"`
	Count          int       `json:"count"`
	Mean           float64   `json:"mean"`
	Median         float64   `json:"median"`
	StdDev         float64   `json:"std_dev"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	P25            float64   `json:"p25"`
	P75            float64   `json:"p75"`
	Skewness       float64   `json:"skewness"`
	Kurtosis       float64   `json:"kurtosis"`
	Histogram      Histogram `json:"histogram"`
}

// Descriptive computes summary statistics per (deployment, metric) group.
// Groups with no readings for a metric are omitted. Temperature values are in
// Fahrenheit (converted in metricSeries), humidity as stored.
func Descriptive(ds *Dataset) []DescriptiveRecord {
	records := make([]DescriptiveRecord, 0, len(ds.Series)*len(models.Metrics))
	for _, s := range ds.Series {
		for _, metric := range models.Metrics {
			_, values := metricSeries(s.Readings, metric)
			if len(values) == 0 {
				continue
			}
			records = append(records, describeGroup(s.Deployment, metric, values))
		}
	}
	return records
}

func describeGroup(dep models.Deployment, metric models.Metric, values []float64) DescriptiveRecord {
	n := len(values)
	sorted := sortedCopy(values)

	rec := DescriptiveRecord{
		DeploymentID:   dep.ID,
		DeploymentName: dep.Name,
		Metric:         string(metric),
		Unit:           metricUnit(metric),
		Count:          n,
		Mean:           sanitize.Float(stat.Mean(values, nil), 0),
		Median:         sanitize.Float(Percentile(sorted, 0.5), 0),
		Min:            sorted[0],
		Max:            sorted[n-1],
		P25:            sanitize.Float(Percentile(sorted, 0.25), 0),
		P75:            sanitize.Float(Percentile(sorted, 0.75), 0),
	}

	if n > 1 {
		rec.StdDev = sanitize.Float(stat.StdDev(values, nil), 0)
	}
	// Higher moments are meaningless (and divide by zero) for tiny or
	// constant groups.
	if n > 2 && rec.StdDev > 0 {
		rec.Skewness = sanitize.Float(stat.Skew(values, nil), 0)
	}
	if n > 3 && rec.StdDev > 0 {
		rec.Kurtosis = sanitize.Float(stat.ExKurtosis(values, nil), 0)
	}

	rec.Histogram = computeHistogram(sorted)
	return rec
}

func computeHistogram(sorted []float64) Histogram {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		hi = lo + 1
	}
	width := (hi - lo) / histogramBins

	h := Histogram{
		Counts: make([]int, histogramBins),
		Edges:  make([]float64, histogramBins+1),
	}
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	for _, v := range sorted {
		bin := int((v - lo) / width)
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		h.Counts[bin]++
	}
	return h
}
