package ingest

import (
	"context"
	"log"
	"time"

	"github.com/mbell/sensorium/internal/metrics"
	"github.com/mbell/sensorium/internal/store"
)

// Scheduler polls the sensor hub for each configured device on a fixed
// interval and stores whatever is new. Inserts are idempotent at the store
// level, so an overlapping poll never duplicates rows.
type Scheduler struct {
	store    *store.Store
	hub      *HubClient
	devices  []string
	interval time.Duration
}

func NewScheduler(st *store.Store, hub *HubClient, devices []string, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		store:    st,
		hub:      hub,
		devices:  devices,
		interval: interval,
	}
}

// Run polls immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.ingestReadings(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.ingestReadings(ctx)
		}
	}
}

// IngestOnce runs a single poll cycle, for the one-shot CLI mode.
func (s *Scheduler) IngestOnce(ctx context.Context) error {
	s.ingestReadings(ctx)
	return nil
}

func (s *Scheduler) ingestReadings(ctx context.Context) {
	log.Println("scheduler: ingesting readings")
	for _, deviceID := range s.devices {
		since, err := s.store.LatestReadingTime(ctx, deviceID)
		if err != nil {
			log.Printf("scheduler: latest reading time %s: %v", deviceID, err)
			continue
		}

		readings, err := s.hub.FetchReadings(ctx, deviceID, since)
		if err != nil {
			log.Printf("scheduler: fetch %s: %v", deviceID, err)
			continue
		}

		now := time.Now()
		inserted := 0
		for _, r := range readings {
			if flags := ValidateReading(r, now); len(flags) > 0 {
				log.Printf("scheduler: drop reading %s@%s: %v", deviceID, r.CreatedAt.Format(time.RFC3339), flags)
				continue
			}
			if err := s.store.InsertReading(r); err != nil {
				log.Printf("scheduler: insert %s: %v", deviceID, err)
				continue
			}
			inserted++
		}
		metrics.ReadingsIngested.WithLabelValues(deviceID).Add(float64(inserted))
		if inserted > 0 {
			log.Printf("scheduler: %s: stored %d readings", deviceID, inserted)
		}
	}
}
