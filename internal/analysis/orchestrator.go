package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mbell/sensorium/internal/metrics"
	"github.com/mbell/sensorium/internal/models"
)

// progressLabels are the human-readable messages reported before each
// analysis runs.
var progressLabels = map[models.AnalysisKind]string{
	models.KindDescriptive: "Computing descriptive statistics...",
	models.KindCorrelation: "Computing correlation and regression...",
	models.KindHypothesis:  "Running pairwise hypothesis tests...",
	models.KindSeasonal:    "Decomposing seasonal patterns...",
	models.KindForecasting: "Fitting forecast models...",
}

// Runner drives the analysis pipeline: it resolves data once per required
// shape, acquires the runtime, and executes each requested analysis with
// per-analysis failure isolation.
type Runner struct {
	runtime *Runtime
	fetcher *Fetcher
	src     Source
}

// NewRunner wires a runtime and a data source.
func NewRunner(rt *Runtime, src Source) *Runner {
	return &Runner{
		runtime: rt,
		fetcher: NewFetcher(src, nil),
		src:     src,
	}
}

// RuntimeState reports the engine lifecycle position for health checks.
func (r *Runner) RuntimeState() State {
	return r.runtime.State()
}

// Run executes every valid requested analysis and returns one outcome per
// kind. A failing analysis is recorded as an error outcome and never aborts
// its siblings; a failing fetch aborts the whole request since no analysis is
// possible without data. Cancellation is honored between analyses, not during
// one: a running kernel always finishes its computation.
func (r *Runner) Run(ctx context.Context, req models.AnalysisRequest, onProgress func(string)) (Result, error) {
	report := func(msg string) {
		if onProgress != nil {
			onProgress(msg)
		}
	}

	kinds := requestedKinds(req.Analyses)
	result := make(Result, len(kinds))
	if len(kinds) == 0 {
		return result, nil
	}

	report("Preparing analysis runtime...")
	engine, err := r.runtime.Acquire(ctx, func(p Progress) {
		report(p.Message)
	})
	if err != nil {
		return nil, err
	}

	// Resolve deployment metadata once for all analyses.
	all, err := r.src.Deployments(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve deployments: %w", err)
	}
	deps := make(map[int64]models.Deployment, len(all))
	for _, d := range all {
		deps[d.ID] = d
	}

	// Fetch each distinct data shape once, not once per analysis.
	var capped, full *Dataset
	for _, k := range kinds {
		if k == models.KindForecasting {
			if full == nil {
				report("Loading full reading history...")
				if full, err = r.fetcher.FullHistoryDataset(ctx, deps, req.DeploymentIDs); err != nil {
					return nil, err
				}
			}
		} else if capped == nil {
			report("Loading readings...")
			if capped, err = r.fetcher.CappedDataset(ctx, deps, req.DeploymentIDs, req.Start, req.End); err != nil {
				return nil, err
			}
		}
	}

	for _, k := range kinds {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		report(progressLabels[k])

		ds := capped
		if k == models.KindForecasting {
			ds = full
		}

		started := time.Now()
		outcome := runOne(engine, k, ds)
		metrics.AnalysisDuration.WithLabelValues(string(k)).Observe(time.Since(started).Seconds())
		status := "ok"
		if outcome.Failed() {
			status = "error"
		}
		metrics.AnalysesTotal.WithLabelValues(string(k), status).Inc()

		result[k] = outcome
	}
	return result, nil
}

// runOne executes a single analysis, converting any panic into an error
// outcome so one bad analysis cannot take down the rest.
func runOne(engine *Engine, kind models.AnalysisKind, ds *Dataset) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Fail(fmt.Sprintf("%s: %v", kind, rec))
		}
	}()

	switch kind {
	case models.KindDescriptive:
		return OK(engine.Descriptive(ds))
	case models.KindCorrelation:
		return OK(engine.Correlation(ds))
	case models.KindHypothesis:
		return OK(engine.HypothesisTests(ds))
	case models.KindSeasonal:
		return OK(engine.SeasonalDecomposition(ds))
	case models.KindForecasting:
		return OK(engine.Forecasts(ds))
	}
	return Fail(fmt.Sprintf("unknown analysis kind %q", kind))
}

// requestedKinds deduplicates the request and orders it by the fixed
// execution order, dropping unknown kinds.
func requestedKinds(requested []models.AnalysisKind) []models.AnalysisKind {
	want := make(map[models.AnalysisKind]bool, len(requested))
	for _, k := range requested {
		if k.Valid() {
			want[k] = true
		}
	}
	out := make([]models.AnalysisKind, 0, len(want))
	for _, k := range models.AnalysisOrder {
		if want[k] {
			out = append(out, k)
		}
	}
	return out
}
