// Command dashboard serves the local operator dashboard: it keeps the
// backend session, polls the device and renders it in the browser.
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

	"smart_irrigation/internal/apiclient"
	"smart_irrigation/internal/config"
	"smart_irrigation/internal/dashboard"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/server"
	"smart_irrigation/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default ./configs/config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	store, closeStore, err := session.OpenStore(cfg.Session)
	if err != nil {
		log.Fatalw("failed to open session store", "err", err, "store", cfg.Session.Store)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			log.Errorw("failed to close session store", "err", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := session.NewManager(store, cfg.Dashboard.BackendURL,
		session.WithHTTPClient(&http.Client{Timeout: cfg.Dashboard.RequestTimeout}),
		session.WithLogger(log.Named("session")),
	)
	defer mgr.Close()
	st := mgr.Init(ctx)
	log.Infow("session_restored", "authenticated", st.IsAuthenticated)

	api := apiclient.New(cfg.Dashboard.BackendURL, mgr.Transport(http.DefaultTransport), cfg.Dashboard.RequestTimeout, log.Named("api"))
	rt := dashboard.NewRuntime(mgr, api, dashboard.Settings{
		PollInterval:    cfg.Dashboard.PollInterval,
		WeatherInterval: cfg.Dashboard.WeatherInterval,
		CooldownTick:    cfg.Dashboard.CooldownTick,
	}, log.Named("runtime"))

	rtDone := make(chan struct{})
	go func() {
		defer close(rtDone)
		rt.Run(ctx)
	}()

	web := dashboard.NewHandler(mgr, rt, log.Named("web"))
	srv := &server.Server{}
	go func() {
		if err := srv.Run(cfg.Dashboard.Listen, web.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	log.Infow("dashboard_started", "listen", cfg.Dashboard.Listen, "backend", cfg.Dashboard.BackendURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down dashboard...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	<-rtDone
}
