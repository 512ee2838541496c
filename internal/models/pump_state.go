package models

import "time"

// PumpState is the persisted actuator state of the single simulated device.
type PumpState struct {
	ID                int        `json:"id"`
	Status            PumpStatus `json:"status"`
	AutomationEnabled bool       `json:"automation_enabled"`
	LastCommandAt     int64      `json:"last_command_at"` // epoch millis
	CooldownSeconds   int        `json:"cooldown_seconds"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
