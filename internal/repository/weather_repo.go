package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smart_irrigation/internal/models"
)

type WeatherSQLite struct {
	db *sql.DB
}

func NewWeatherSQLite(db *sql.DB) *WeatherSQLite { return &WeatherSQLite{db: db} }

const (
	weatherRowID = 1

	upsertWeatherSQL = `
		INSERT INTO weather_state (id, city, temperature, description, icon, humidity, wind_speed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			city=excluded.city,
			temperature=excluded.temperature,
			description=excluded.description,
			icon=excluded.icon,
			humidity=excluded.humidity,
			wind_speed=excluded.wind_speed,
			updated_at=excluded.updated_at
	`

	selectWeatherSQL = `
		SELECT city, temperature, description, icon, humidity, wind_speed, updated_at
		FROM weather_state WHERE id=?
	`
)

func (r *WeatherSQLite) Save(ctx context.Context, w models.WeatherSnapshot) error {
	ts := w.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertWeatherSQL,
		weatherRowID,
		w.City,
		nullFloat(w.Temperature),
		w.Description,
		w.Icon,
		nullFloat(w.Humidity),
		nullFloat(w.WindSpeed),
		ts.UTC(),
	)
	return err
}

// Load returns the stored weather, or a zero snapshot when none is stored.
func (r *WeatherSQLite) Load(ctx context.Context) (models.WeatherSnapshot, error) {
	var (
		w                    models.WeatherSnapshot
		temp, humidity, wind sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, selectWeatherSQL, weatherRowID).Scan(
		&w.City, &temp, &w.Description, &w.Icon, &humidity, &wind, &w.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WeatherSnapshot{}, nil
		}
		return models.WeatherSnapshot{}, err
	}
	w.Temperature = floatPtr(temp)
	w.Humidity = floatPtr(humidity)
	w.WindSpeed = floatPtr(wind)
	w.Timestamp = w.Timestamp.UTC()
	return w, nil
}
