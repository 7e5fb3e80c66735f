package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbell/sensorium/internal/models"
)

// Store is the sqlite-backed reading and deployment store. All timestamps
// are stored in UTC at second precision so server-side bucketing can rely on
// strftime.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertDeployment(d models.Deployment) error {
	var ended any
	if d.EndedAt != nil {
		ended = d.EndedAt.UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO deployments (device_id, name, location, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id, name) DO UPDATE SET
			location = excluded.location,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`, d.DeviceID, d.Name, d.Location, d.StartedAt.UTC(), ended)
	return err
}

func (s *Store) Deployments(ctx context.Context) ([]models.Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, name, COALESCE(location, ''), started_at, ended_at
		FROM deployments
		ORDER BY started_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []models.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

func (s *Store) Deployment(ctx context.Context, id int64) (*models.Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, name, COALESCE(location, ''), started_at, ended_at
		FROM deployments
		WHERE id = ?
	`, id)

	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (models.Deployment, error) {
	var d models.Deployment
	var ended sql.NullTime
	if err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.Location, &d.StartedAt, &ended); err != nil {
		return models.Deployment{}, err
	}
	if ended.Valid {
		t := ended.Time
		d.EndedAt = &t
	}
	return d, nil
}

func (s *Store) InsertReading(r models.Reading) error {
	_, err := s.db.Exec(`
		INSERT INTO readings (device_id, temperature_celsius, humidity_percent, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, created_at) DO NOTHING
	`, r.DeviceID, nullableFloat(r.TemperatureC), nullableFloat(r.HumidityPercent), r.CreatedAt.UTC().Truncate(time.Second))
	return err
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// LatestReadingTime returns the newest reading timestamp for a device, zero
// if the device has none.
func (s *Store) LatestReadingTime(ctx context.Context, deviceID string) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM readings WHERE device_id = ?`, deviceID,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// DeploymentReadings returns readings for the deployment's device within
// [start, end]. With preferLatest the newest limit rows are returned
// (descending order); otherwise ascending from start. limit <= 0 means no
// cap.
func (s *Store) DeploymentReadings(ctx context.Context, deploymentID int64, start, end time.Time, limit int, preferLatest bool) ([]models.Reading, error) {
	order := "ASC"
	if preferLatest {
		order = "DESC"
	}
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`
		SELECT r.id, r.device_id, r.temperature_celsius, r.humidity_percent, r.created_at
		FROM readings r
		JOIN deployments d ON d.device_id = r.device_id
		WHERE d.id = ? AND r.created_at >= ? AND r.created_at <= ?
		ORDER BY r.created_at %s, r.id %s
		LIMIT ?
	`, order, order)

	rows, err := s.db.QueryContext(ctx, query, deploymentID, start.UTC(), end.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// ReadingsPage returns the ascending page of readings strictly after the
// (after, afterID) cursor, up to end inclusive.
func (s *Store) ReadingsPage(ctx context.Context, deploymentID int64, after time.Time, afterID int64, end time.Time, limit int) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.device_id, r.temperature_celsius, r.humidity_percent, r.created_at
		FROM readings r
		JOIN deployments d ON d.device_id = r.device_id
		WHERE d.id = ?
		  AND (r.created_at > ? OR (r.created_at = ? AND r.id > ?))
		  AND r.created_at <= ?
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT ?
	`, deploymentID, after.UTC(), after.UTC(), afterID, end.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var temp, hum sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.DeviceID, &temp, &hum, &r.CreatedAt); err != nil {
			return nil, err
		}
		if temp.Valid {
			v := temp.Float64
			r.TemperatureC = &v
		}
		if hum.Valid {
			v := hum.Float64
			r.HumidityPercent = &v
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// BucketedSamples aggregates readings into fixed-width time slots server
// side. deviceID narrows to one device when non-empty; maxRows <= 0 means no
// cap.
func (s *Store) BucketedSamples(ctx context.Context, start, end time.Time, bucketSeconds int, deviceID string, maxRows int) ([]models.BucketedSample, error) {
	if bucketSeconds <= 0 {
		return nil, fmt.Errorf("bucket seconds must be positive, got %d", bucketSeconds)
	}
	if maxRows <= 0 {
		maxRows = -1
	}

	query := `
		SELECT (CAST(strftime('%s', created_at) AS INTEGER) / ?1) * ?1 AS bucket,
		       device_id,
		       AVG(temperature_celsius),
		       AVG(humidity_percent),
		       COUNT(*)
		FROM readings
		WHERE created_at >= ?2 AND created_at <= ?3
	`
	args := []any{bucketSeconds, start.UTC(), end.UTC()}
	if deviceID != "" {
		query += " AND device_id = ?4"
		args = append(args, deviceID)
	}
	query += `
		GROUP BY bucket, device_id
		ORDER BY bucket ASC, device_id ASC
		LIMIT ?
	`
	args = append(args, maxRows)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.BucketedSample
	for rows.Next() {
		var b models.BucketedSample
		var bucket int64
		var temp, hum sql.NullFloat64
		if err := rows.Scan(&bucket, &b.DeviceID, &temp, &hum, &b.ReadingCount); err != nil {
			return nil, err
		}
		b.BucketTS = time.Unix(bucket, 0).UTC()
		if temp.Valid {
			v := temp.Float64
			b.TemperatureAvg = &v
		}
		if hum.Valid {
			v := hum.Float64
			b.HumidityAvg = &v
		}
		samples = append(samples, b)
	}
	return samples, rows.Err()
}
