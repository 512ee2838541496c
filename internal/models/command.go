package models

import "time"

// CommandAction is a pump command accepted by POST /api/command.
type CommandAction string

const (
	ActionPumpOn  CommandAction = "TURN_PUMP_ON"
	ActionPumpOff CommandAction = "TURN_PUMP_OFF"
	// ActionAutomation marks pump switches issued by the automation loop.
	ActionAutomation CommandAction = "AUTOMATION"
)

// Valid reports whether a is an operator command.
func (a CommandAction) Valid() bool {
	return a == ActionPumpOn || a == ActionPumpOff
}

// TargetStatus is the pump state the action asks for.
func (a CommandAction) TargetStatus() PumpStatus {
	if a == ActionPumpOn {
		return PumpOn
	}
	return PumpOff
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Action CommandAction `json:"action"`
}

// CommandResult is the answer of POST /api/command.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PumpEvent is a single entry of the pump command log.
type PumpEvent struct {
	EventID    string        `json:"event_id"`
	OccurredAt time.Time     `json:"occurred_at"`
	Action     CommandAction `json:"action"`
	Accepted   bool          `json:"accepted"`
	Message    string        `json:"message"`
}
