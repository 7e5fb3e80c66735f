package analysis

import (
	"context"
	"sort"
	"time"

	"github.com/mbell/sensorium/internal/models"
)

// fakeSource is an in-memory Source with the same window/ordering semantics
// as the sqlite store.
type fakeSource struct {
	deployments []models.Deployment
	readings    map[int64][]models.Reading // keyed by deployment id, ascending
	err         error
}

func (f *fakeSource) Deployments(ctx context.Context) ([]models.Deployment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.deployments, nil
}

func (f *fakeSource) DeploymentReadings(ctx context.Context, deploymentID int64, start, end time.Time, limit int, preferLatest bool) ([]models.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Reading
	for _, r := range f.readings[deploymentID] {
		if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	if preferLatest {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) ReadingsPage(ctx context.Context, deploymentID int64, after time.Time, afterID int64, end time.Time, limit int) ([]models.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Reading
	for _, r := range f.readings[deploymentID] {
		if r.CreatedAt.After(end) {
			continue
		}
		afterCursor := r.CreatedAt.After(after) || (r.CreatedAt.Equal(after) && r.ID > afterID)
		if !afterCursor {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// makeReadings builds n readings at fixed intervals with generated values.
// tempC or hum generators may be nil to leave that metric missing.
func makeReadings(deviceID string, start time.Time, n int, step time.Duration, tempC, hum func(i int) float64) []models.Reading {
	out := make([]models.Reading, 0, n)
	for i := 0; i < n; i++ {
		r := models.Reading{
			ID:        int64(i + 1),
			DeviceID:  deviceID,
			CreatedAt: start.Add(time.Duration(i) * step),
		}
		if tempC != nil {
			v := tempC(i)
			r.TemperatureC = &v
		}
		if hum != nil {
			v := hum(i)
			r.HumidityPercent = &v
		}
		out = append(out, r)
	}
	return out
}

// singleSeries wraps readings in a one-deployment dataset.
func singleSeries(dep models.Deployment, readings []models.Reading) *Dataset {
	return &Dataset{Series: []Series{{Deployment: dep, Readings: readings}}}
}

func testDeployment(id int64, name string, started time.Time) models.Deployment {
	return models.Deployment{
		ID:        id,
		DeviceID:  name,
		Name:      name,
		Location:  "test bench",
		StartedAt: started,
	}
}
