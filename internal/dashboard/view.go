package dashboard

import (
	"fmt"
	"strconv"
	"time"

	"smart_irrigation/internal/models"
)

const (
	notAvailable = "N/A"

	// ChartTimeLayout labels chart points.
	ChartTimeLayout = "15:04:05"
	// UpdatedLayout is used for "last updated" lines.
	UpdatedLayout = "2006-01-02 15:04:05"

	msgLatestFailed  = "Failed to fetch latest sensor data. Please ensure backend is running and you are logged in."
	msgHistoryFailed = "Failed to fetch historical data. Please ensure backend is running and you are logged in."
	msgWeatherNA     = "Weather data not available. Ensure backend weather API is configured and running."
)

// State is everything the dashboard has learned from the backend so far.
type State struct {
	Snapshot  *models.DeviceSnapshot
	History   []models.DeviceSnapshot
	Weather   *models.WeatherSnapshot
	Remaining int

	// Loading holds until the first history attempt finishes.
	Loading bool
	// LoadError blocks the view; set when no history could be loaded yet.
	LoadError string
	// SensorError is a banner over otherwise usable data.
	SensorError string
	// Notice is the outcome of the last pump command.
	Notice string
}

type SensorCard struct {
	SoilMoisture string `json:"soilMoisture"`
	PumpStatus   string `json:"pumpStatus"`
	Temperature  string `json:"temperature"`
	Humidity     string `json:"humidity"`
	LastUpdated  string `json:"lastUpdated"`
}

type PumpCard struct {
	Status            models.PumpStatus `json:"status"`
	Automation        string            `json:"automation"`
	OnEnabled         bool              `json:"onEnabled"`
	OffEnabled        bool              `json:"offEnabled"`
	CooldownRemaining int               `json:"cooldownRemaining"`
	CooldownMessage   string            `json:"cooldownMessage,omitempty"`
}

type WeatherCard struct {
	Available   bool   `json:"available"`
	City        string `json:"city,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	Temperature string `json:"temperature,omitempty"`
	Description string `json:"description,omitempty"`
	Humidity    string `json:"humidity,omitempty"`
	Wind        string `json:"wind,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ChartSeries is one line chart. Points holds nil where the reading was
// missing so the chart shows a gap.
type ChartSeries struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	AxisTitle string     `json:"axisTitle"`
	Unit      string     `json:"unit"`
	Labels    []string   `json:"labels"`
	Points    []*float64 `json:"points"`
}

// View is the rendered dashboard, served as JSON and pushed over /ws.
type View struct {
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
	Banner  string        `json:"banner,omitempty"`
	Notice  string        `json:"notice,omitempty"`
	Sensor  SensorCard    `json:"sensor"`
	Pump    PumpCard      `json:"pump"`
	Weather WeatherCard   `json:"weather"`
	Charts  []ChartSeries `json:"charts"`
}

// Controls decides which pump actions are available. Both are disabled while
// the cooldown is running.
func Controls(status models.PumpStatus, remaining int) (onEnabled, offEnabled bool) {
	idle := remaining <= 0
	return status != models.PumpOn && idle, status == models.PumpOn && idle
}

// BuildView renders st with times shown in loc.
func BuildView(st State, loc *time.Location) View {
	if loc == nil {
		loc = time.Local
	}
	snap := models.DeviceSnapshot{PumpStatus: models.PumpOff}
	if st.Snapshot != nil {
		snap = *st.Snapshot
	}
	return View{
		Loading: st.Loading,
		Error:   st.LoadError,
		Banner:  st.SensorError,
		Notice:  st.Notice,
		Sensor:  sensorCard(snap, loc),
		Pump:    pumpCard(snap, st.Remaining),
		Weather: weatherCard(st.Weather, loc),
		Charts:  charts(st.History, loc),
	}
}

func sensorCard(s models.DeviceSnapshot, loc *time.Location) SensorCard {
	card := SensorCard{
		SoilMoisture: formatValue(s.SoilMoisture, ""),
		PumpStatus:   string(s.PumpStatus),
		Temperature:  formatValue(s.Temperature, "°C"),
		Humidity:     formatValue(s.Humidity, "%"),
		LastUpdated:  notAvailable,
	}
	if !s.Timestamp.IsZero() {
		card.LastUpdated = s.Timestamp.In(loc).Format(UpdatedLayout)
	}
	return card
}

func pumpCard(s models.DeviceSnapshot, remaining int) PumpCard {
	on, off := Controls(s.PumpStatus, remaining)
	card := PumpCard{
		Status:            s.PumpStatus,
		Automation:        "Inactive",
		OnEnabled:         on,
		OffEnabled:        off,
		CooldownRemaining: remaining,
	}
	if s.AutomationEnabled {
		card.Automation = "Active"
	}
	if remaining > 0 {
		card.CooldownMessage = fmt.Sprintf("Pump on cooldown: %ds remaining", remaining)
	}
	return card
}

func weatherCard(w *models.WeatherSnapshot, loc *time.Location) WeatherCard {
	if w == nil || !w.Available() {
		return WeatherCard{Message: msgWeatherNA}
	}
	card := WeatherCard{
		Available:   true,
		City:        w.City,
		IconURL:     w.IconURL(),
		Temperature: formatValue(w.Temperature, "°C"),
		Description: w.Description,
		Humidity:    formatValue(w.Humidity, "%"),
		Wind:        formatValue(w.WindSpeed, " m/s"),
		LastUpdated: notAvailable,
	}
	if !w.Timestamp.IsZero() {
		card.LastUpdated = w.Timestamp.In(loc).Format(ChartTimeLayout)
	}
	return card
}

func charts(history []models.DeviceSnapshot, loc *time.Location) []ChartSeries {
	labels := make([]string, 0, len(history))
	moisture := make([]*float64, 0, len(history))
	temperature := make([]*float64, 0, len(history))
	humidity := make([]*float64, 0, len(history))
	for _, h := range history {
		labels = append(labels, h.Timestamp.In(loc).Format(ChartTimeLayout))
		moisture = append(moisture, h.SoilMoisture)
		temperature = append(temperature, h.Temperature)
		humidity = append(humidity, h.Humidity)
	}
	return []ChartSeries{
		{Key: "soilMoisture", Label: "Soil Moisture", AxisTitle: "Moisture Value (Lower = Wetter)", Unit: " (Lower = Wetter)", Labels: labels, Points: moisture},
		{Key: "temperature", Label: "Temperature (°C)", AxisTitle: "Temperature (°C)", Unit: "°C", Labels: labels, Points: temperature},
		{Key: "humidity", Label: "Humidity (%)", AxisTitle: "Humidity (%)", Unit: "%", Labels: labels, Points: humidity},
	}
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}
