package analysis

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestCorrelationPerfectLinear(t *testing.T) {
	// Humidity is an exact linear function of temperature.
	readings := makeReadings("dev-1", testStart, 50, time.Minute,
		func(i int) float64 { return float64(i) },                  // °C, converted to °F internally
		func(i int) float64 { return 100 - 2*(float64(i)*9/5+32) }) // hum = 100 - 2*tempF
	ds := singleSeries(testDeployment(1, "bench", testStart), readings)

	records := Correlation(ds)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.N != 50 {
		t.Errorf("n = %d, want 50", rec.N)
	}
	if math.Abs(rec.R+1) > 1e-9 {
		t.Errorf("r = %v, want -1", rec.R)
	}
	if math.Abs(rec.R2-1) > 1e-9 {
		t.Errorf("r² = %v, want 1", rec.R2)
	}
	if rec.PValue > 1e-6 {
		t.Errorf("p = %v, want ~0 for perfect correlation", rec.PValue)
	}
	if math.Abs(rec.Slope+2) > 1e-9 {
		t.Errorf("slope = %v, want -2", rec.Slope)
	}
	if math.Abs(rec.Intercept-100) > 1e-6 {
		t.Errorf("intercept = %v, want 100", rec.Intercept)
	}
}

func TestCorrelationDegenerateSentinel(t *testing.T) {
	tests := []struct {
		name string
		temp func(i int) float64
		hum  func(i int) float64
		n    int
		// wantIntercept is the humidity mean the sentinel should carry.
		wantIntercept float64
	}{
		{
			name:          "zero temperature variance",
			temp:          func(i int) float64 { return 20 },
			hum:           func(i int) float64 { return float64(40 + i) },
			n:             10,
			wantIntercept: 44.5,
		},
		{
			name:          "zero humidity variance",
			temp:          func(i int) float64 { return float64(i) },
			hum:           func(i int) float64 { return 60 },
			n:             10,
			wantIntercept: 60,
		},
		{
			name:          "fewer than three aligned points",
			temp:          func(i int) float64 { return float64(i) },
			hum:           func(i int) float64 { return float64(50 + i) },
			n:             2,
			wantIntercept: 50.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readings := makeReadings("dev-1", testStart, tt.n, time.Minute, tt.temp, tt.hum)
			ds := singleSeries(testDeployment(1, "bench", testStart), readings)

			rec := Correlation(ds)[0]
			if rec.R != 0 {
				t.Errorf("r = %v, want 0", rec.R)
			}
			if rec.PValue != 1 {
				t.Errorf("p = %v, want 1", rec.PValue)
			}
			if rec.Slope != 0 {
				t.Errorf("slope = %v, want 0", rec.Slope)
			}
			if math.Abs(rec.Intercept-tt.wantIntercept) > 1e-9 {
				t.Errorf("intercept = %v, want %v", rec.Intercept, tt.wantIntercept)
			}
		})
	}
}

func TestCorrelationInnerJoin(t *testing.T) {
	// Half the readings miss humidity; they must be excluded from alignment.
	readings := makeReadings("dev-1", testStart, 20, time.Minute,
		func(i int) float64 { return float64(i) }, func(i int) float64 { return float64(80 - i) })
	for i := range readings {
		if i%2 == 1 {
			readings[i].HumidityPercent = nil
		}
	}
	ds := singleSeries(testDeployment(1, "bench", testStart), readings)

	rec := Correlation(ds)[0]
	if rec.N != 10 {
		t.Errorf("n = %d, want 10 aligned points", rec.N)
	}
}

func TestCorrelationScatterDeterministicAndBounded(t *testing.T) {
	readings := makeReadings("dev-1", testStart, 2000, time.Minute,
		func(i int) float64 { return 15 + 5*math.Sin(float64(i)/30) },
		func(i int) float64 { return 60 + 10*math.Cos(float64(i)/40) })
	ds := singleSeries(testDeployment(1, "bench", testStart), readings)

	first := Correlation(ds)[0]
	second := Correlation(ds)[0]
	if len(first.Scatter) > scatterMaxPoints {
		t.Errorf("scatter = %d points, want <= %d", len(first.Scatter), scatterMaxPoints)
	}
	if len(first.Scatter) == 0 {
		t.Fatal("scatter empty")
	}
	if !reflect.DeepEqual(first.Scatter, second.Scatter) {
		t.Error("scatter subsampling is not deterministic across runs")
	}
}

func TestCorrelationPValueRange(t *testing.T) {
	readings := makeReadings("dev-1", testStart, 100, time.Minute,
		func(i int) float64 { return 20 + math.Sin(float64(i)) },
		func(i int) float64 { return 55 + math.Cos(float64(i)*1.7) })
	ds := singleSeries(testDeployment(1, "bench", testStart), readings)

	rec := Correlation(ds)[0]
	if rec.PValue < 0 || rec.PValue > 1 {
		t.Errorf("p = %v, want within [0,1]", rec.PValue)
	}
	if math.Abs(rec.R2-rec.R*rec.R) > 1e-12 {
		t.Errorf("r² = %v, want r*r = %v", rec.R2, rec.R*rec.R)
	}
}
