// Package holtwinters implements additive triple exponential smoothing
// (level, trend, seasonal) with an optional damped trend. Smoothing
// parameters are chosen by minimizing one-step-ahead squared error over a
// coarse grid followed by a local refinement pass, which keeps fitting
// deterministic for a given input series.
package holtwinters

import (
	"errors"
	"fmt"
	"math"
)

// TrendMode selects how the trend component evolves.
type TrendMode int

const (
	// TrendNone drops the trend component (seasonal exponential smoothing).
	TrendNone TrendMode = iota
	// TrendAdditive uses a plain additive trend.
	TrendAdditive
	// TrendDamped uses an additive trend damped by a fixed phi.
	TrendDamped
)

// dampingPhi is the fixed damping factor for TrendDamped.
const dampingPhi = 0.98

// ErrTooShort indicates the series does not cover two full seasons.
var ErrTooShort = errors.New("holtwinters: series shorter than two seasons")

// Model describes a Holt-Winters configuration prior to fitting.
type Model struct {
	SeasonLength int
	Trend        TrendMode
}

// Fit holds fitted parameters and the smoothing state at the end of the
// training series.
type Fit struct {
	Alpha float64
	Beta  float64
	Gamma float64
	Phi   float64
	SSE   float64
	AIC   float64

	mode     TrendMode
	season   int
	n        int
	level    float64
	trend    float64
	seasonal []float64
}

// Fit estimates smoothing parameters and initial state from y.
// y must contain at least two full seasons of finite values.
func (m Model) Fit(y []float64) (*Fit, error) {
	if m.SeasonLength < 2 {
		return nil, fmt.Errorf("holtwinters: season length %d too small", m.SeasonLength)
	}
	if len(y) < 2*m.SeasonLength {
		return nil, ErrTooShort
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("holtwinters: non-finite value at index %d", i)
		}
	}

	level0, trend0, seasonal0 := estimateInitialState(y, m.SeasonLength, m.Trend)

	alphas := gridValues(0.05, 0.95, 10)
	gammas := []float64{0.05, 0.1, 0.2, 0.3, 0.5}
	betas := []float64{0.01, 0.05, 0.1, 0.2, 0.3}
	if m.Trend == TrendNone {
		betas = []float64{0}
	}

	best := math.Inf(1)
	var bestA, bestB, bestG float64
	evaluate := func(a, b, g float64) {
		sse := m.run(y, a, b, g, level0, trend0, seasonal0, nil)
		if sse < best {
			best, bestA, bestB, bestG = sse, a, b, g
		}
	}

	for _, a := range alphas {
		for _, b := range betas {
			for _, g := range gammas {
				evaluate(a, b, g)
			}
		}
	}

	// Local refinement around the grid winner.
	for _, a := range neighborhood(bestA, 0.05) {
		for _, b := range neighborhood(bestB, 0.025) {
			if m.Trend == TrendNone {
				b = 0
			}
			for _, g := range neighborhood(bestG, 0.025) {
				evaluate(a, b, g)
			}
		}
	}

	if math.IsInf(best, 0) || math.IsNaN(best) {
		return nil, errors.New("holtwinters: fit did not converge to a finite error")
	}

	phi := 1.0
	if m.Trend == TrendDamped {
		phi = dampingPhi
	}
	fit := &Fit{
		Alpha:    bestA,
		Beta:     bestB,
		Gamma:    bestG,
		Phi:      phi,
		SSE:      best,
		mode:     m.Trend,
		season:   m.SeasonLength,
		n:        len(y),
		seasonal: append([]float64(nil), seasonal0...),
	}
	fit.level = level0
	fit.trend = trend0
	fit.SSE = m.run(y, bestA, bestB, bestG, level0, trend0, seasonal0, fit)
	fit.AIC = computeAIC(fit.SSE, len(y), m.SeasonLength, m.Trend)
	return fit, nil
}

// run executes the smoothing recursion and returns the one-step-ahead SSE.
// When out is non-nil, the final state is stored there for forecasting.
func (m Model) run(y []float64, alpha, beta, gamma, level, trend float64, seasonal0 []float64, out *Fit) float64 {
	phi := 1.0
	switch m.Trend {
	case TrendNone:
		trend = 0
	case TrendDamped:
		phi = dampingPhi
	}

	s := append([]float64(nil), seasonal0...)
	var sse float64
	for t, v := range y {
		j := t % m.SeasonLength
		fitted := level + phi*trend + s[j]
		e := v - fitted
		sse += e * e

		prev := level
		level = alpha*(v-s[j]) + (1-alpha)*(prev+phi*trend)
		if m.Trend != TrendNone {
			trend = beta*(level-prev) + (1-beta)*phi*trend
		}
		s[j] = gamma*(v-level) + (1-gamma)*s[j]
	}

	if out != nil {
		out.level = level
		out.trend = trend
		out.seasonal = s
	}
	return sse
}

// Forecast extrapolates steps values past the end of the training series.
func (f *Fit) Forecast(steps int) []float64 {
	out := make([]float64, 0, steps)
	dampSum := 0.0
	phiPow := 1.0
	for h := 1; h <= steps; h++ {
		phiPow *= f.Phi
		dampSum += phiPow
		j := (f.n + h - 1) % f.season
		out = append(out, f.level+dampSum*f.trend+f.seasonal[j])
	}
	return out
}

// estimateInitialState derives starting level, trend and centered seasonal
// indices from the first seasons of the series.
func estimateInitialState(y []float64, season int, mode TrendMode) (float64, float64, []float64) {
	periods := len(y) / season

	periodMeans := make([]float64, periods)
	for i := 0; i < periods; i++ {
		var sum float64
		for j := 0; j < season; j++ {
			sum += y[i*season+j]
		}
		periodMeans[i] = sum / float64(season)
	}

	level := periodMeans[0]
	trend := 0.0
	if mode != TrendNone && periods > 1 {
		trend = (periodMeans[1] - periodMeans[0]) / float64(season)
	}

	seasonal := make([]float64, season)
	for j := 0; j < season; j++ {
		var sum float64
		for i := 0; i < periods; i++ {
			sum += y[i*season+j] - periodMeans[i]
		}
		seasonal[j] = sum / float64(periods)
	}
	// Center the indices so they sum to zero.
	var mean float64
	for _, v := range seasonal {
		mean += v
	}
	mean /= float64(season)
	for j := range seasonal {
		seasonal[j] -= mean
	}

	return level, trend, seasonal
}

func computeAIC(sse float64, n, season int, mode TrendMode) float64 {
	// Free parameters: smoothing constants plus initial states.
	k := 2 + season + 1 // alpha, gamma, seasonal indices, level
	if mode != TrendNone {
		k += 2 // beta, initial trend
	}
	variance := sse / float64(n)
	if variance < 1e-12 {
		variance = 1e-12
	}
	return float64(n)*math.Log(variance) + 2*float64(k)
}

func gridValues(lo, hi float64, count int) []float64 {
	out := make([]float64, count)
	step := (hi - lo) / float64(count-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// neighborhood returns v and the two points at +-delta, clipped to (0, 1).
func neighborhood(v, delta float64) []float64 {
	out := []float64{v}
	if lo := v - delta; lo > 0 {
		out = append(out, lo)
	}
	if hi := v + delta; hi < 1 {
		out = append(out, hi)
	}
	return out
}
