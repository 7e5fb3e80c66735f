package ingest

import (
	"time"

	"github.com/mbell/sensorium/internal/models"
)

const (
	FlagTempOutOfRange  = "temp_out_of_range"
	FlagHumidityInvalid = "humidity_invalid"
	FlagTimestampFuture = "timestamp_future"
	FlagNoMeasurements  = "no_measurements"
)

// futureSlack tolerates small clock skew between the hub and this host.
const futureSlack = 5 * time.Minute

// ValidateReading flags values outside what the sensors can physically
// report. DHT22-class sensors cover -40..80 C and 0..100 %RH.
func ValidateReading(r models.Reading, now time.Time) []string {
	var flags []string

	if r.TemperatureC != nil {
		if *r.TemperatureC < -40 || *r.TemperatureC > 80 {
			flags = append(flags, FlagTempOutOfRange)
		}
	}

	if r.HumidityPercent != nil {
		if *r.HumidityPercent < 0 || *r.HumidityPercent > 100 {
			flags = append(flags, FlagHumidityInvalid)
		}
	}

	if r.TemperatureC == nil && r.HumidityPercent == nil {
		flags = append(flags, FlagNoMeasurements)
	}

	if r.CreatedAt.After(now.Add(futureSlack)) {
		flags = append(flags, FlagTimestampFuture)
	}

	return flags
}
