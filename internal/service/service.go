package service

import (
	"context"
	"time"

	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, email, password string) (int, error)
	GenerateToken(ctx context.Context, email, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	EnsureUser(ctx context.Context, email, password string) (bool, error)
}

// Telemetry exposes read-only sensor data.
type Telemetry interface {
	Latest(ctx context.Context) (models.DeviceSnapshot, error)
	History(ctx context.Context, f HistoryFilter) ([]models.DeviceSnapshot, error)
}

// Command accepts operator pump commands.
type Command interface {
	Execute(ctx context.Context, action models.CommandAction) (models.CommandResult, error)
}

// EventLog exposes the append-only pump log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.PumpEvent, error)
}

type Weather interface {
	Current(ctx context.Context) (models.WeatherSnapshot, error)
}

// Simulator runs the background loop that samples the device.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Options carry the configured device and token settings.
type Options struct {
	SigningKey   string
	TokenTTL     time.Duration
	HistoryLimit int
	Pump         PumpSettings
	Simulator    SimulatorSettings
}

type Service struct {
	Authorization
	Telemetry
	Command
	EventLog
	Weather
	Simulator
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, opts Options, log *logger.Logger) *Service {
	log = logger.OrNop(log)
	pump := NewCommandService(repos.PumpState, repos.EventRepo, opts.Pump, log.Named("command"))
	return &Service{
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
		Telemetry:     NewTelemetryService(repos.Readings, pump, opts.HistoryLimit),
		Command:       pump,
		EventLog:      NewEventLogService(repos.EventRepo),
		Weather:       NewWeatherService(repos.Weather),
		Simulator:     NewSimulatorService(repos.Readings, repos.Weather, pump, opts.Simulator, log.Named("simulator")),
	}
}
