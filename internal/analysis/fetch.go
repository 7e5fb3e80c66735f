package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mbell/sensorium/internal/metrics"
	"github.com/mbell/sensorium/internal/models"
)

const (
	cappedFetchLimit    = 5000
	fullHistoryPageSize = 1000
)

// Source is the read-only view of the data store the pipeline consumes.
type Source interface {
	Deployments(ctx context.Context) ([]models.Deployment, error)
	// DeploymentReadings returns readings for a deployment's device within
	// [start, end]. With preferLatest, the most recent limit rows are
	// returned (descending); otherwise ascending from start.
	DeploymentReadings(ctx context.Context, deploymentID int64, start, end time.Time, limit int, preferLatest bool) ([]models.Reading, error)
	// ReadingsPage returns the next ascending page strictly after the
	// (after, afterID) cursor, up to end.
	ReadingsPage(ctx context.Context, deploymentID int64, after time.Time, afterID int64, end time.Time, limit int) ([]models.Reading, error)
}

// Fetcher resolves effective time windows and retrieves normalized reading
// tables for analysis.
type Fetcher struct {
	src Source
	now func() time.Time
}

// NewFetcher wraps a Source. now is swappable for tests; nil means
// time.Now.
func NewFetcher(src Source, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{src: src, now: now}
}

// resolveWindow intersects the requested window with the deployment's
// lifetime. The second return is false when the intersection is empty.
func (f *Fetcher) resolveWindow(dep models.Deployment, start, end time.Time) (time.Time, time.Time, bool) {
	depStart, depEnd := dep.Window(f.now())
	if start.After(depStart) {
		depStart = start
	}
	if end.Before(depEnd) {
		depEnd = end
	}
	if depStart.After(depEnd) {
		return time.Time{}, time.Time{}, false
	}
	return depStart, depEnd, true
}

// CappedDataset fetches up to cappedFetchLimit readings per deployment,
// keeping the most recent rows when the window holds more, re-sorted
// ascending for analysis. Deployment ids missing from deps are skipped
// silently so partial requests degrade gracefully.
func (f *Fetcher) CappedDataset(ctx context.Context, deps map[int64]models.Deployment, ids []int64, start, end time.Time) (*Dataset, error) {
	ds := &Dataset{}
	for _, id := range ids {
		dep, ok := deps[id]
		if !ok {
			continue
		}
		s := Series{Deployment: dep}
		if effStart, effEnd, ok := f.resolveWindow(dep, start, end); ok {
			readings, err := f.src.DeploymentReadings(ctx, id, effStart, effEnd, cappedFetchLimit, true)
			if err != nil {
				return nil, fmt.Errorf("fetch readings for deployment %d: %w", id, err)
			}
			sortReadings(readings)
			s.Readings = readings
			metrics.ReadingsFetched.WithLabelValues("capped").Add(float64(len(readings)))
		}
		ds.Series = append(ds.Series, s)
	}
	return ds, nil
}

// FullHistoryDataset fetches every reading from each deployment's own start
// through now, ignoring the caller's nominal window and the row cap.
// Forecasting degrades with truncated history, so this path trades cost for
// completeness, paginating the store in fixed-size pages until exhausted.
func (f *Fetcher) FullHistoryDataset(ctx context.Context, deps map[int64]models.Deployment, ids []int64) (*Dataset, error) {
	ds := &Dataset{}
	for _, id := range ids {
		dep, ok := deps[id]
		if !ok {
			continue
		}
		s := Series{Deployment: dep}

		_, depEnd := dep.Window(f.now())
		cursor := dep.StartedAt.Add(-time.Nanosecond)
		var cursorID int64
		for {
			page, err := f.src.ReadingsPage(ctx, id, cursor, cursorID, depEnd, fullHistoryPageSize)
			if err != nil {
				return nil, fmt.Errorf("fetch history page for deployment %d: %w", id, err)
			}
			s.Readings = append(s.Readings, page...)
			metrics.ReadingsFetched.WithLabelValues("full_history").Add(float64(len(page)))
			if len(page) < fullHistoryPageSize {
				break
			}
			last := page[len(page)-1]
			cursor, cursorID = last.CreatedAt, last.ID
		}
		ds.Series = append(ds.Series, s)
	}
	return ds, nil
}
