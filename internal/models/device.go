package models

import "time"

// PumpStatus is the actuator state reported by the device.
type PumpStatus string

const (
	PumpOn  PumpStatus = "ON"
	PumpOff PumpStatus = "OFF"
)

// Valid reports whether s is ON or OFF.
func (s PumpStatus) Valid() bool {
	return s == PumpOn || s == PumpOff
}

// DeviceSnapshot is one sampled reading of sensor and pump state.
// Sensor values are nil when the device has not reported them.
type DeviceSnapshot struct {
	SoilMoisture        *float64   `json:"soilMoisture"` // raw probe value, lower = wetter
	PumpStatus          PumpStatus `json:"pumpStatus"`
	Temperature         *float64   `json:"temperature"` // °C
	Humidity            *float64   `json:"humidity"`    // %
	Timestamp           time.Time  `json:"timestamp"`
	LastPumpCommandTime int64      `json:"lastPumpCommandTime"` // epoch millis
	PumpCooldownSeconds int        `json:"pumpCooldownSeconds"`
	AutomationEnabled   bool       `json:"automationEnabled"`
}

// Float returns a pointer to v, for building snapshots.
func Float(v float64) *float64 { return &v }
