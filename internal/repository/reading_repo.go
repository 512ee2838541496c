package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smart_irrigation/internal/models"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

const (
	insertReadingSQL = `
		INSERT INTO sensor_readings (recorded_at, soil_moisture, temperature, humidity, pump_status)
		VALUES (?, ?, ?, ?, ?)
	`

	selectLatestReadingSQL = `
		SELECT id, recorded_at, soil_moisture, temperature, humidity, pump_status
		FROM sensor_readings ORDER BY recorded_at DESC, id DESC LIMIT 1
	`

	// newest rows first in the inner query, flipped back to ascending
	selectHistorySQL = `
		SELECT id, recorded_at, soil_moisture, temperature, humidity, pump_status FROM (
			SELECT id, recorded_at, soil_moisture, temperature, humidity, pump_status
			FROM sensor_readings WHERE recorded_at >= ?
			ORDER BY recorded_at DESC, id DESC LIMIT ?
		) ORDER BY recorded_at ASC, id ASC
	`

	deleteReadingsBeforeSQL = `DELETE FROM sensor_readings WHERE recorded_at < ?`
)

// Append stores r. A zero RecordedAt is set to now; times are kept in UTC.
func (r *ReadingSQLite) Append(ctx context.Context, rd models.SensorReading) error {
	ts := rd.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		ts.UTC(),
		nullFloat(rd.SoilMoisture),
		nullFloat(rd.Temperature),
		nullFloat(rd.Humidity),
		string(rd.PumpStatus),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *ReadingSQLite) Latest(ctx context.Context) (models.SensorReading, bool, error) {
	rd, err := scanReading(r.db.QueryRowContext(ctx, selectLatestReadingSQL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SensorReading{}, false, nil
		}
		return models.SensorReading{}, false, fmt.Errorf("select latest reading: %w", err)
	}
	return rd, true, nil
}

func (r *ReadingSQLite) History(ctx context.Context, since time.Time, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := r.db.QueryContext(ctx, selectHistorySQL, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	out := make([]models.SensorReading, 0, 64)
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes readings older than before and reports how many went.
func (r *ReadingSQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteReadingsBeforeSQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(s rowScanner) (models.SensorReading, error) {
	var (
		rd                       models.SensorReading
		moisture, temp, humidity sql.NullFloat64
		status                   string
	)
	if err := s.Scan(&rd.ID, &rd.RecordedAt, &moisture, &temp, &humidity, &status); err != nil {
		return models.SensorReading{}, err
	}
	rd.RecordedAt = rd.RecordedAt.UTC()
	rd.SoilMoisture = floatPtr(moisture)
	rd.Temperature = floatPtr(temp)
	rd.Humidity = floatPtr(humidity)
	rd.PumpStatus = models.PumpStatus(status)
	return rd, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
