package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smart_irrigation/internal/cooldown"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidAction = errors.New("invalid action: expected TURN_PUMP_ON or TURN_PUMP_OFF")
	ErrPumpUnchanged = errors.New("pump already in requested state")
)

// CooldownError rejects a command issued inside the cooldown window.
type CooldownError struct {
	Remaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("Pump on cooldown: %ds remaining", e.Remaining)
}

// PumpSettings are the device defaults applied when no pump state exists yet.
type PumpSettings struct {
	CooldownSeconds   int
	AutomationEnabled bool
}

// CommandService owns every pump state transition. Operator commands and
// automation switches are serialized on mu so the cooldown check and the
// state write cannot interleave.
type CommandService struct {
	mu        sync.Mutex
	stateRepo repository.PumpStateRepo
	eventRepo repository.EventRepo
	settings  PumpSettings
	now       func() time.Time
	log       *logger.Logger
}

func NewCommandService(stateRepo repository.PumpStateRepo, eventRepo repository.EventRepo, settings PumpSettings, log *logger.Logger) *CommandService {
	return &CommandService{
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		settings:  settings,
		now:       time.Now,
		log:       logger.OrNop(log),
	}
}

// Execute applies an operator command. Rejections come back as a result with
// Success=false together with ErrInvalidAction, ErrPumpUnchanged or a
// *CooldownError; storage failures return a bare error.
func (s *CommandService) Execute(ctx context.Context, action models.CommandAction) (models.CommandResult, error) {
	if !action.Valid() {
		return models.CommandResult{Message: ErrInvalidAction.Error()}, ErrInvalidAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	st, err := s.current(ctx, now)
	if err != nil {
		return models.CommandResult{}, err
	}

	target := action.TargetStatus()
	if rem := cooldown.Remaining(now, st.LastCommandAt, st.CooldownSeconds); rem > 0 {
		cerr := &CooldownError{Remaining: rem}
		s.reject(ctx, action, cerr.Error(), now)
		return models.CommandResult{Message: cerr.Error()}, cerr
	}
	if st.Status == target {
		msg := "Pump is already " + string(target)
		s.reject(ctx, action, msg, now)
		return models.CommandResult{Message: msg}, ErrPumpUnchanged
	}

	if err := s.switchPump(ctx, st, action, target, now); err != nil {
		return models.CommandResult{}, err
	}
	return models.CommandResult{Success: true, Message: "Pump turned " + string(target)}, nil
}

// Current returns the stored pump state, or the device defaults when the
// device has never been switched.
func (s *CommandService) Current(ctx context.Context) (models.PumpState, error) {
	return s.current(ctx, s.now().UTC())
}

// automate switches the pump on behalf of the automation loop. It is a no-op
// while cooling down or when the pump is already in the target state.
func (s *CommandService) automate(ctx context.Context, target models.PumpStatus, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current(ctx, now)
	if err != nil {
		return false, err
	}
	if !st.AutomationEnabled || st.Status == target {
		return false, nil
	}
	if cooldown.Remaining(now, st.LastCommandAt, st.CooldownSeconds) > 0 {
		return false, nil
	}
	if err := s.switchPump(ctx, st, models.ActionAutomation, target, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CommandService) current(ctx context.Context, now time.Time) (models.PumpState, error) {
	st, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.PumpState{}, err
	}
	if st.ID == 0 {
		st = models.PumpState{
			ID:                1,
			Status:            models.PumpOff,
			AutomationEnabled: s.settings.AutomationEnabled,
			CooldownSeconds:   s.settings.CooldownSeconds,
			UpdatedAt:         now,
		}
	}
	return st, nil
}

func (s *CommandService) switchPump(ctx context.Context, st models.PumpState, action models.CommandAction, target models.PumpStatus, now time.Time) error {
	st.Status = target
	st.LastCommandAt = now.UnixMilli()
	st.CooldownSeconds = s.settings.CooldownSeconds
	st.UpdatedAt = now

	if err := s.stateRepo.Save(ctx, st); err != nil {
		return err
	}
	s.log.Infow("pump_switched", "action", action, "status", target)

	return s.eventRepo.Append(ctx, models.PumpEvent{
		EventID:    uuid.NewString(),
		OccurredAt: now,
		Action:     action,
		Accepted:   true,
		Message:    "Pump turned " + string(target),
	})
}

// reject logs a refused command; a failed write only loses the log entry.
func (s *CommandService) reject(ctx context.Context, action models.CommandAction, msg string, now time.Time) {
	err := s.eventRepo.Append(ctx, models.PumpEvent{
		EventID:    uuid.NewString(),
		OccurredAt: now,
		Action:     action,
		Message:    msg,
	})
	if err != nil {
		s.log.Errorw("pump_event_append_failed", "action", action, "error", err)
	}
	s.log.Infow("pump_command_rejected", "action", action, "reason", msg)
}
