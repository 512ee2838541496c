package models

import (
	"fmt"
	"time"
)

const weatherIconURL = "http://openweathermap.org/img/wn/%s@2x.png"

// WeatherSnapshot is the current outdoor weather at the installation.
type WeatherSnapshot struct {
	Temperature *float64  `json:"temperature"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	City        string    `json:"city"`
	Humidity    *float64  `json:"humidity"`
	WindSpeed   *float64  `json:"wind_speed"` // m/s
	Timestamp   time.Time `json:"timestamp"`
}

// Available reports whether the snapshot carries enough data to display.
func (w WeatherSnapshot) Available() bool {
	return w.City != "" && w.Temperature != nil
}

// IconURL returns the OpenWeatherMap icon URL, or "" when no icon is set.
func (w WeatherSnapshot) IconURL() string {
	if w.Icon == "" {
		return ""
	}
	return fmt.Sprintf(weatherIconURL, w.Icon)
}
