package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smart_irrigation/internal/models"
)

type PumpStateSQLite struct {
	db *sql.DB
}

func NewPumpStateSQLite(db *sql.DB) *PumpStateSQLite {
	return &PumpStateSQLite{db: db}
}

const (
	pumpStateRowID = 1

	insertOrUpdatePumpStateSQL = `
		INSERT INTO pump_state (id, status, automation_enabled, last_command_at, cooldown_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			automation_enabled=excluded.automation_enabled,
			last_command_at=excluded.last_command_at,
			cooldown_seconds=excluded.cooldown_seconds,
			updated_at=excluded.updated_at
	`

	selectPumpStateSQL = `
		SELECT id, status, automation_enabled, last_command_at, cooldown_seconds, updated_at
		FROM pump_state WHERE id=?
	`
)

// Save updates or inserts the pump_state row (id always 1).
func (r *PumpStateSQLite) Save(ctx context.Context, s models.PumpState) error {
	// ensure UpdatedAt is always persisted as UTC; set if zero
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertOrUpdatePumpStateSQL,
		pumpStateRowID,
		string(s.Status),
		s.AutomationEnabled,
		s.LastCommandAt,
		s.CooldownSeconds,
		ts,
	)
	return err
}

// Load fetches the single pump_state row. A zero state (ID 0) means the
// row does not exist yet.
func (r *PumpStateSQLite) Load(ctx context.Context) (models.PumpState, error) {
	var (
		s      models.PumpState
		status string
	)
	err := r.db.QueryRowContext(ctx, selectPumpStateSQL, pumpStateRowID).Scan(
		&s.ID,
		&status,
		&s.AutomationEnabled,
		&s.LastCommandAt,
		&s.CooldownSeconds,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PumpState{}, nil
		}
		return models.PumpState{}, err
	}
	s.Status = models.PumpStatus(status)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
