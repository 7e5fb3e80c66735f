package forecast

import (
	"sort"
	"time"

	"github.com/mbell/sensorium/internal/models"
)

// AggregateDaily groups hourly forecast points by calendar date in loc and
// reduces each date to its high/low band. A date is included only when a full
// day of points exists for it, so partial leading and trailing days are
// dropped and the output is either empty or whole days, sorted ascending.
func AggregateDaily(points []models.ForecastPoint, loc *time.Location) []models.DailyForecast {
	type dayAgg struct {
		count int
		high  float64
		low   float64
		day   time.Time
	}

	days := make(map[string]*dayAgg)
	for _, p := range points {
		local := p.Timestamp.In(loc)
		key := local.Format("2006-01-02")
		agg, ok := days[key]
		if !ok {
			agg = &dayAgg{
				high: p.Value,
				low:  p.Value,
				day:  time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
			}
			days[key] = agg
		}
		agg.count++
		if p.Value > agg.high {
			agg.high = p.Value
		}
		if p.Value < agg.low {
			agg.low = p.Value
		}
	}

	var out []models.DailyForecast
	for key, agg := range days {
		if agg.count < hoursInDay(agg.day) {
			continue
		}
		out = append(out, models.DailyForecast{
			Date:      key,
			DayName:   agg.day.Format("Monday"),
			TempHighF: agg.high,
			TempLowF:  agg.low,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// hoursInDay returns how many hourly points cover the calendar day starting
// at the given local midnight. DST shifts make some days 23 or 25 hours long.
func hoursInDay(midnight time.Time) int {
	return int(midnight.AddDate(0, 0, 1).Sub(midnight) / time.Hour)
}
