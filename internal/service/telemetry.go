package service

import (
	"context"
	"time"

	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"
)

const defaultHistoryLimit = 100

// HistoryFilter bounds a history query. Zero Since means no lower bound;
// Limit <= 0 or above the configured maximum falls back to that maximum.
type HistoryFilter struct {
	Since time.Time
	Limit int
}

type pumpReader interface {
	Current(ctx context.Context) (models.PumpState, error)
}

type TelemetryService struct {
	readings     repository.ReadingRepo
	pump         pumpReader
	historyLimit int
	now          func() time.Time
}

func NewTelemetryService(readings repository.ReadingRepo, pump pumpReader, historyLimit int) *TelemetryService {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &TelemetryService{
		readings:     readings,
		pump:         pump,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// Latest returns the newest reading merged with the live pump state.
// If nothing was sampled yet, returns a baseline snapshot without sensor values.
func (s *TelemetryService) Latest(ctx context.Context) (models.DeviceSnapshot, error) {
	st, err := s.pump.Current(ctx)
	if err != nil {
		return models.DeviceSnapshot{}, err
	}

	r, ok, err := s.readings.Latest(ctx)
	if err != nil {
		return models.DeviceSnapshot{}, err
	}
	if !ok {
		r = models.SensorReading{RecordedAt: s.now().UTC()}
	}

	snap := r.Snapshot(st)
	snap.PumpStatus = st.Status
	snap.Timestamp = toUTC(snap.Timestamp)
	return snap, nil
}

// History returns readings oldest first. The result is never nil.
func (s *TelemetryService) History(ctx context.Context, f HistoryFilter) ([]models.DeviceSnapshot, error) {
	limit := f.Limit
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	rows, err := s.readings.History(ctx, toUTC(f.Since), limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.DeviceSnapshot, 0, len(rows))
	for _, r := range rows {
		snap := r.Snapshot(models.PumpState{})
		snap.Timestamp = toUTC(snap.Timestamp)
		out = append(out, snap)
	}
	return out, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
