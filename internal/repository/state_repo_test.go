package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"
)

func TestPumpStateSQLite_Save_SetsUTCNow_WhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := repository.NewPumpStateSQLite(db)

	state := models.PumpState{
		Status:            models.PumpOn,
		AutomationEnabled: true,
		LastCommandAt:     1714564800000,
		CooldownSeconds:   30,
		// UpdatedAt is zero
	}

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	// We don't have direct access to the private SQL constant, so match by fragment.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pump_state")).
		WithArgs(1, "ON", true, int64(1714564800000), 30, isUTCRecent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPumpStateSQLite_Save_PreservesGivenTimeButConvertsToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := repository.NewPumpStateSQLite(db)

	loc := time.FixedZone("EAT", 3*60*60)
	given := time.Date(2026, 5, 1, 15, 0, 0, 0, loc)
	expectedUTC := given.UTC()

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(expectedUTC) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pump_state")).
		WithArgs(1, "OFF", false, int64(0), 0, isExactUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), models.PumpState{Status: models.PumpOff, UpdatedAt: given}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPumpStateSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := repository.NewPumpStateSQLite(db)
	wantErr := errors.New("exec failed")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pump_state")).
		WillReturnError(wantErr)

	err = repo.Save(context.Background(), models.PumpState{Status: models.PumpOff})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Save() error = %v, want %v", err, wantErr)
	}
}

func TestPumpStateSQLite_Load_NoRowsReturnsZeroValueAndNilError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := repository.NewPumpStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pump_state WHERE id=?")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != (models.PumpState{}) {
		t.Fatalf("Load() = %+v, want zero value", got)
	}
}

func TestPumpStateSQLite_Load_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := repository.NewPumpStateSQLite(db)

	loc := time.FixedZone("EAT", 3*60*60)
	updated := time.Date(2026, 5, 1, 15, 0, 0, 0, loc)
	rows := sqlmock.NewRows([]string{"id", "status", "automation_enabled", "last_command_at", "cooldown_seconds", "updated_at"}).
		AddRow(1, "ON", true, int64(1714564800000), 30, updated)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status, automation_enabled, last_command_at, cooldown_seconds, updated_at")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := models.PumpState{
		ID:                1,
		Status:            models.PumpOn,
		AutomationEnabled: true,
		LastCommandAt:     1714564800000,
		CooldownSeconds:   30,
		UpdatedAt:         updated.UTC(),
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("UpdatedAt location = %v, want UTC", got.UpdatedAt.Location())
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
