package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"
)

// LogFilter supports pump log filtering by time range and action.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Action string    // "", "TURN_PUMP_ON", "TURN_PUMP_OFF", "AUTOMATION"
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeAction trims spaces and uppercases the action filter.
func normalizeAction(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := toUTC(f.From)
	to := toUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	return from, to, normalizeAction(f.Action), nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.PumpEvent, error) {
	from, to, action, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.List(ctx, from, to, action)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.PumpEvent{}
	}
	return events, nil
}

// IsInvalidFilter reports whether err comes from a malformed log filter.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, errInvalidTimeRange)
}
