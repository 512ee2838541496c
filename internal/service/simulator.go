package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"
)

// ----------- Simulation constants -----------
const (
	MoistureWettest  = 200.0 // probe floor, saturated soil
	MoistureDriest   = 900.0 // probe ceiling, dry soil
	InitialMoisture  = 550.0
	DryRatePerSec    = 0.8 // moisture rise per second with the pump OFF
	WetRatePerSec    = 6.0 // moisture drop per second with the pump ON
	AmbientC         = 24.0
	InitialHumidity  = 55.0
	maxElapsedSec    = 60.0 // cap after long pauses so one tick never jumps to a bound
	pruneEvery       = time.Minute
	temperatureDrift = 0.3 // max °C per tick
	humidityDrift    = 1.0 // max % per tick
	windDrift        = 0.4 // max m/s per tick
)

// AutomationSettings switch the pump from soil moisture. Lower moisture is
// wetter: at or above DryThreshold the pump goes ON, at or below
// WetThreshold it goes OFF.
type AutomationSettings struct {
	DryThreshold float64
	WetThreshold float64
}

// SimulatorSettings configure the simulated device.
type SimulatorSettings struct {
	City       string
	Retention  time.Duration
	Automation AutomationSettings
}

// SimulatorService samples the simulated sensors over time.
type SimulatorService struct {
	readings repository.ReadingRepo
	weather  repository.WeatherRepo
	pump     *CommandService
	set      SimulatorSettings
	log      *logger.Logger

	// rnd returns values in [0, 1); 0.5 means no drift.
	rnd       func() float64
	lastPrune time.Time
}

// NewSimulatorService returns a simulator with defaults.
func NewSimulatorService(readings repository.ReadingRepo, weather repository.WeatherRepo, pump *CommandService, set SimulatorSettings, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		readings: readings,
		weather:  weather,
		pump:     pump,
		set:      set,
		log:      logger.OrNop(log),
		rnd:      rand.Float64,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := s.step(ctx, now.UTC()); err != nil && ctx.Err() == nil {
				s.log.Errorw("simulator_step_failed", "error", err)
			}
		}
	}
}

// step samples one reading, runs automation, drifts the weather and prunes
// old readings.
func (s *SimulatorService) step(ctx context.Context, now time.Time) error {
	st, err := s.pump.Current(ctx)
	if err != nil {
		return err
	}

	prev, ok, err := s.readings.Latest(ctx)
	if err != nil {
		return err
	}

	r := s.nextReading(prev, ok, st.Status, now)
	if err := s.readings.Append(ctx, r); err != nil {
		return err
	}

	if err := s.automate(ctx, *r.SoilMoisture, now); err != nil {
		return err
	}
	if err := s.driftWeather(ctx, now); err != nil {
		return err
	}
	return s.prune(ctx, now)
}

// nextReading advances the previous reading by the elapsed time.
func (s *SimulatorService) nextReading(prev models.SensorReading, ok bool, status models.PumpStatus, now time.Time) models.SensorReading {
	if !ok {
		return models.SensorReading{
			RecordedAt:   now,
			SoilMoisture: models.Float(InitialMoisture),
			Temperature:  models.Float(AmbientC),
			Humidity:     models.Float(InitialHumidity),
			PumpStatus:   status,
		}
	}

	elapsed := clamp(now.Sub(prev.RecordedAt).Seconds(), 0, maxElapsedSec)

	moisture := valueOr(prev.SoilMoisture, InitialMoisture)
	if status == models.PumpOn {
		moisture -= WetRatePerSec * elapsed
	} else {
		moisture += DryRatePerSec * elapsed
	}
	moisture = clamp(moisture+s.jitter(1), MoistureWettest, MoistureDriest)

	temp := clamp(valueOr(prev.Temperature, AmbientC)+s.jitter(temperatureDrift), 5, 45)
	hum := clamp(valueOr(prev.Humidity, InitialHumidity)+s.jitter(humidityDrift), 10, 100)

	return models.SensorReading{
		RecordedAt:   now,
		SoilMoisture: models.Float(round1(moisture)),
		Temperature:  models.Float(round1(temp)),
		Humidity:     models.Float(round1(hum)),
		PumpStatus:   status,
	}
}

// automate switches the pump when moisture crosses a threshold.
func (s *SimulatorService) automate(ctx context.Context, moisture float64, now time.Time) error {
	a := s.set.Automation
	if a.DryThreshold <= a.WetThreshold {
		return nil
	}

	var target models.PumpStatus
	switch {
	case moisture >= a.DryThreshold:
		target = models.PumpOn
	case moisture <= a.WetThreshold:
		target = models.PumpOff
	default:
		return nil
	}

	switched, err := s.pump.automate(ctx, target, now)
	if err != nil {
		return err
	}
	if switched {
		s.log.Infow("automation_switched_pump", "status", target, "soil_moisture", moisture)
	}
	return nil
}

// driftWeather keeps the outdoor weather moving. Without a city there is no
// weather to report.
func (s *SimulatorService) driftWeather(ctx context.Context, now time.Time) error {
	if s.set.City == "" {
		return nil
	}

	w, err := s.weather.Load(ctx)
	if err != nil {
		return err
	}

	if !w.Available() {
		w = models.WeatherSnapshot{
			City:        s.set.City,
			Temperature: models.Float(AmbientC),
			Humidity:    models.Float(50),
			WindSpeed:   models.Float(3),
		}
	} else {
		w.City = s.set.City
		w.Temperature = models.Float(round1(clamp(valueOr(w.Temperature, AmbientC)+s.jitter(temperatureDrift), -10, 45)))
		w.Humidity = models.Float(round1(clamp(valueOr(w.Humidity, 50)+s.jitter(humidityDrift), 5, 100)))
		w.WindSpeed = models.Float(round1(clamp(valueOr(w.WindSpeed, 3)+s.jitter(windDrift), 0, 25)))
	}
	w.Description, w.Icon = describeWeather(*w.Humidity)
	w.Timestamp = now

	return s.weather.Save(ctx, w)
}

// prune drops readings older than the retention window, at most once a minute.
func (s *SimulatorService) prune(ctx context.Context, now time.Time) error {
	if s.set.Retention <= 0 || now.Sub(s.lastPrune) < pruneEvery {
		return nil
	}
	n, err := s.readings.Prune(ctx, now.Add(-s.set.Retention))
	if err != nil {
		return err
	}
	s.lastPrune = now
	if n > 0 {
		s.log.Debugw("readings_pruned", "count", n)
	}
	return nil
}

// describeWeather maps humidity onto an OpenWeatherMap description and icon.
func describeWeather(humidity float64) (string, string) {
	switch {
	case humidity >= 85:
		return "light rain", "10d"
	case humidity >= 65:
		return "scattered clouds", "03d"
	case humidity >= 45:
		return "few clouds", "02d"
	default:
		return "clear sky", "01d"
	}
}

// helpers
func (s *SimulatorService) jitter(max float64) float64 {
	return (s.rnd()*2 - 1) * max
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
