package service

import (
	"context"
	"errors"

	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"
)

var ErrWeatherUnavailable = errors.New("weather data not available")

type WeatherService struct {
	repo repository.WeatherRepo
}

func NewWeatherService(repo repository.WeatherRepo) *WeatherService {
	return &WeatherService{repo: repo}
}

// Current returns the stored outdoor weather, or ErrWeatherUnavailable until
// the simulator has produced a snapshot with a city and a temperature.
func (s *WeatherService) Current(ctx context.Context) (models.WeatherSnapshot, error) {
	w, err := s.repo.Load(ctx)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	if !w.Available() {
		return models.WeatherSnapshot{}, ErrWeatherUnavailable
	}
	w.Timestamp = toUTC(w.Timestamp)
	return w, nil
}
