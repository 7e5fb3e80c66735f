// Package sanitize guarantees that no NaN or infinity crosses the boundary
// between the analysis engine and its consumers. Analyses run every computed
// float through Float or Probability; Any covers nested generic payloads.
// The final JSON encode still rejects non-finite values, so an incomplete
// sanitization fails loudly instead of emitting malformed output.
package sanitize

import (
	"math"
)

// Float returns v unless it is NaN or infinite, in which case it returns
// fallback.
func Float(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Probability returns v coerced to a finite value in [0, 1]. Non-finite input
// maps to 0.
func Probability(v float64) float64 {
	v = Float(v, 0)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Any walks nested maps and slices, replacing non-finite floats with 0.
// Integers, booleans, strings and nils pass through untouched. Float pointers
// keep their nil-ness so JSON null survives.
func Any(v any) any {
	switch val := v.(type) {
	case float64:
		return Float(val, 0)
	case float32:
		return Float(float64(val), 0)
	case *float64:
		if val == nil {
			return val
		}
		f := Float(*val, 0)
		return &f
	case []float64:
		out := make([]float64, len(val))
		for i, f := range val {
			out[i] = Float(f, 0)
		}
		return out
	case []*float64:
		out := make([]*float64, len(val))
		for i, p := range val {
			if p == nil {
				continue
			}
			f := Float(*p, 0)
			out[i] = &f
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Any(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Any(e)
		}
		return out
	default:
		return v
	}
}
