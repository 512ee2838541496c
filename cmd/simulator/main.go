// Command simulator runs the reference irrigation backend: a simulated soil
// sensor and pump behind the HTTP API the dashboard talks to.
//
// @title                       Smart Irrigation Simulator API
// @version                     1.0
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart_irrigation/docs"
	"smart_irrigation/internal/config"
	"smart_irrigation/internal/handlers"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/repository"
	"smart_irrigation/internal/repository/db"
	"smart_irrigation/internal/server"
	"smart_irrigation/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default ./configs/config.yml)")
	flag.Parse()

	// load config.yml
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	// open DB
	conn, err := db.InitDB(cfg.Simulator.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.Simulator.DBPath)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, serviceOptions(cfg.Simulator), log)
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seedUsers(ctx, services, cfg.Simulator.Users, log)

	// start simulator (via composed service)
	go services.Simulator.Run(ctx, cfg.Simulator.Tick)

	docs.SwaggerInfo.Host = "localhost:" + cfg.Simulator.Port

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Simulator.Port, apiHandler, log)
	log.Infow("simulator_started", "port", cfg.Simulator.Port, "tick", cfg.Simulator.Tick)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func serviceOptions(c config.SimulatorConfig) service.Options {
	return service.Options{
		SigningKey:   c.SigningKey,
		TokenTTL:     c.TokenTTL,
		HistoryLimit: c.HistoryLimit,
		Pump: service.PumpSettings{
			CooldownSeconds:   c.CooldownSeconds,
			AutomationEnabled: c.Automation.Enabled,
		},
		Simulator: service.SimulatorSettings{
			City:      c.City,
			Retention: c.Retention,
			Automation: service.AutomationSettings{
				DryThreshold: c.Automation.DryThreshold,
				WetThreshold: c.Automation.WetThreshold,
			},
		},
	}
}

// seedUsers creates the configured operator accounts if they are missing.
func seedUsers(ctx context.Context, services *service.Service, users []config.UserSeed, log *logger.Logger) {
	for _, u := range users {
		created, err := services.EnsureUser(ctx, u.Email, u.Password)
		if err != nil {
			log.Errorw("user_seed_failed", "email", u.Email, "err", err)
			continue
		}
		if created {
			log.Infow("user_seeded", "email", u.Email)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
