package analysis

import (
	"math"
	"testing"
	"time"
)

func pairDataset(tempA, tempB func(i int) float64, nA, nB int) *Dataset {
	return &Dataset{Series: []Series{
		{
			Deployment: testDeployment(1, "alpha", testStart),
			Readings:   makeReadings("alpha", testStart, nA, time.Minute, tempA, nil),
		},
		{
			Deployment: testDeployment(2, "beta", testStart),
			Readings:   makeReadings("beta", testStart, nB, time.Minute, tempB, nil),
		},
	}}
}

func TestHypothesisClearDifference(t *testing.T) {
	ds := pairDataset(
		func(i int) float64 { return 10 + float64(i%2) },
		func(i int) float64 { return 50 + float64(i%2) },
		20, 20,
	)

	records := HypothesisTests(ds)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1 (temperature only)", len(records))
	}
	rec := records[0]
	if rec.Metric != "temperature" {
		t.Errorf("metric = %q, want temperature", rec.Metric)
	}
	if rec.PValue >= 0.05 {
		t.Errorf("p = %v, want < 0.05 for clearly separated groups", rec.PValue)
	}
	if !rec.Significant {
		t.Error("significant = false, want true")
	}
	if rec.CohensD <= 0 {
		t.Errorf("cohen's d = %v, want > 0", rec.CohensD)
	}
	if rec.GroupA.N != 20 || rec.GroupB.N != 20 {
		t.Errorf("group sizes = %d, %d, want 20, 20", rec.GroupA.N, rec.GroupB.N)
	}
	if rec.GroupA.Mean >= rec.GroupB.Mean {
		t.Errorf("group means %v >= %v, want A < B", rec.GroupA.Mean, rec.GroupB.Mean)
	}
}

func TestHypothesisIdenticalConstantGroups(t *testing.T) {
	ds := pairDataset(
		func(i int) float64 { return 20 },
		func(i int) float64 { return 20 },
		10, 10,
	)

	rec := HypothesisTests(ds)[0]
	if rec.PValue != 1 {
		t.Errorf("p = %v, want 1 when both groups are constant", rec.PValue)
	}
	if rec.Significant {
		t.Error("significant = true, want false")
	}
	if rec.TStatistic != 0 {
		t.Errorf("t = %v, want 0", rec.TStatistic)
	}
	if rec.CohensD != 0 {
		t.Errorf("cohen's d = %v, want 0 with zero pooled deviation", rec.CohensD)
	}
}

func TestHypothesisConstantGroupsWithGap(t *testing.T) {
	// Constant groups with different means still get the zero-spread sentinel.
	// The gap is only visible through the group summaries.
	ds := pairDataset(
		func(i int) float64 { return 10 },
		func(i int) float64 { return 50 },
		10, 10,
	)

	rec := HypothesisTests(ds)[0]
	if rec.PValue != 1 || rec.TStatistic != 0 || rec.CohensD != 0 {
		t.Errorf("got p=%v t=%v d=%v, want sentinel 1/0/0", rec.PValue, rec.TStatistic, rec.CohensD)
	}
	if rec.Significant {
		t.Error("significant = true, want false with undefined t")
	}
	if rec.GroupA.Mean != 50 || rec.GroupB.Mean != 122 {
		t.Errorf("group means = %v, %v, want 50 and 122", rec.GroupA.Mean, rec.GroupB.Mean)
	}
	if rec.GroupA.StdDev != 0 || rec.GroupB.StdDev != 0 {
		t.Errorf("group stddevs = %v, %v, want 0", rec.GroupA.StdDev, rec.GroupB.StdDev)
	}
}

func TestHypothesisSkipsSmallGroups(t *testing.T) {
	ds := pairDataset(
		func(i int) float64 { return 10 },
		func(i int) float64 { return 50 },
		1, 20,
	)
	if records := HypothesisTests(ds); len(records) != 0 {
		t.Errorf("records = %d, want 0 when one group has n <= 1", len(records))
	}
}

func TestHypothesisSignificanceMatchesThreshold(t *testing.T) {
	// Overlapping noisy groups across both metrics: whatever the p-values
	// come out to, the significance call must equal p < 0.05 exactly and d
	// must be non-negative.
	ds := &Dataset{Series: []Series{
		{
			Deployment: testDeployment(1, "alpha", testStart),
			Readings: makeReadings("alpha", testStart, 30, time.Minute,
				func(i int) float64 { return 20 + 3*math.Sin(float64(i)) },
				func(i int) float64 { return 50 + 5*math.Cos(float64(i)) }),
		},
		{
			Deployment: testDeployment(2, "beta", testStart),
			Readings: makeReadings("beta", testStart, 25, time.Minute,
				func(i int) float64 { return 21 + 3*math.Cos(float64(i)*1.3) },
				func(i int) float64 { return 52 + 5*math.Sin(float64(i)*0.7) }),
		},
	}}

	records := HypothesisTests(ds)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (one per metric)", len(records))
	}
	for _, rec := range records {
		if rec.Significant != (rec.PValue < 0.05) {
			t.Errorf("%s: significant = %v but p = %v", rec.Metric, rec.Significant, rec.PValue)
		}
		if rec.CohensD < 0 {
			t.Errorf("%s: cohen's d = %v, want >= 0", rec.Metric, rec.CohensD)
		}
		if rec.PValue < 0 || rec.PValue > 1 {
			t.Errorf("%s: p = %v, want within [0,1]", rec.Metric, rec.PValue)
		}
		if rec.DegreesOfFreedom <= 0 {
			t.Errorf("%s: df = %v, want positive", rec.Metric, rec.DegreesOfFreedom)
		}
	}
}

func TestHypothesisPairCount(t *testing.T) {
	// Three deployments with both metrics: C(3,2) pairs x 2 metrics.
	ds := &Dataset{}
	for id := int64(1); id <= 3; id++ {
		ds.Series = append(ds.Series, Series{
			Deployment: testDeployment(id, string(rune('a'+id-1)), testStart),
			Readings: makeReadings("dev", testStart, 10, time.Minute,
				func(i int) float64 { return float64(id*10 + int64(i%3)) },
				func(i int) float64 { return float64(40 + id + int64(i%2)) }),
		})
	}
	if records := HypothesisTests(ds); len(records) != 6 {
		t.Errorf("len(records) = %d, want 6", len(records))
	}
}
