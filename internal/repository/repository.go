package repository

import (
	"context"
	"database/sql"
	"time"

	"smart_irrigation/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, email, hash string) (int, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type ReadingRepo interface {
	Append(ctx context.Context, r models.SensorReading) error
	// Latest returns the newest reading; ok is false when none is stored.
	Latest(ctx context.Context) (r models.SensorReading, ok bool, err error)
	// History returns up to limit newest readings at or after since, oldest first.
	History(ctx context.Context, since time.Time, limit int) ([]models.SensorReading, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type PumpStateRepo interface {
	Save(ctx context.Context, s models.PumpState) error
	Load(ctx context.Context) (models.PumpState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.PumpEvent) error
	List(ctx context.Context, from, to time.Time, action string) ([]models.PumpEvent, error)
}

type WeatherRepo interface {
	Save(ctx context.Context, w models.WeatherSnapshot) error
	Load(ctx context.Context) (models.WeatherSnapshot, error)
}

type Repository struct {
	Readings  ReadingRepo
	PumpState PumpStateRepo
	EventRepo EventRepo
	Weather   WeatherRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Readings:  NewReadingSQLite(db),
		PumpState: NewPumpStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Weather:   NewWeatherSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
