package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mbell/sensorium/internal/httputil"
	"github.com/mbell/sensorium/internal/metrics"
	"github.com/mbell/sensorium/internal/models"
)

// HubClient pulls readings from the sensor hub's HTTP API. Devices post their
// measurements to the hub; we poll it per device with a since cursor.
type HubClient struct {
	baseURL string
	client  *http.Client
}

func NewHubClient(baseURL string) *HubClient {
	return &HubClient{
		baseURL: baseURL,
		client:  httputil.NewClient(),
	}
}

type readingsResponse struct {
	Readings []hubReading `json:"readings"`
}

type hubReading struct {
	ID          int64    `json:"id"`
	DeviceID    string   `json:"device_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	CreatedAt   string   `json:"created_at"`
}

// FetchReadings returns the device's readings created after since, oldest
// first. Transient upstream failures (timeouts, 429, 5xx) are retried with
// exponential backoff; anything else fails immediately.
func (h *HubClient) FetchReadings(ctx context.Context, deviceID string, since time.Time) ([]models.Reading, error) {
	q := url.Values{}
	q.Set("device_id", deviceID)
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint := h.baseURL + "/api/v1/readings?" + q.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		started := time.Now()
		resp, err := h.client.Do(req)
		metrics.HubAPILatency.WithLabelValues("readings").Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.HubAPICalls.WithLabelValues("readings", "error").Inc()
			return fmt.Errorf("fetch readings: %w", err)
		}
		defer resp.Body.Close()
		metrics.HubAPICalls.WithLabelValues("readings", fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch readings: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch readings: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var data readingsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	results := make([]models.Reading, 0, len(data.Readings))
	for _, r := range data.Readings {
		createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", r.CreatedAt, err)
		}
		results = append(results, models.Reading{
			ID:              r.ID,
			DeviceID:        r.DeviceID,
			TemperatureC:    r.Temperature,
			HumidityPercent: r.Humidity,
			CreatedAt:       createdAt.UTC(),
		})
	}
	return results, nil
}
