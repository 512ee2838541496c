package models

import "time"

// SensorReading is one stored sample of the simulated device.
type SensorReading struct {
	ID           int64      `json:"id"`
	RecordedAt   time.Time  `json:"recorded_at"`
	SoilMoisture *float64   `json:"soil_moisture"`
	Temperature  *float64   `json:"temperature"`
	Humidity     *float64   `json:"humidity"`
	PumpStatus   PumpStatus `json:"pump_status"`
}

// Snapshot projects the reading onto the device snapshot wire shape, taking
// the command fields from the pump state.
func (r SensorReading) Snapshot(p PumpState) DeviceSnapshot {
	return DeviceSnapshot{
		SoilMoisture:        r.SoilMoisture,
		PumpStatus:          r.PumpStatus,
		Temperature:         r.Temperature,
		Humidity:            r.Humidity,
		Timestamp:           r.RecordedAt,
		LastPumpCommandTime: p.LastCommandAt,
		PumpCooldownSeconds: p.CooldownSeconds,
		AutomationEnabled:   p.AutomationEnabled,
	}
}
