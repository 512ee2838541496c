package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"smart_irrigation/internal/apiclient"
	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/cooldown"
	"smart_irrigation/internal/dashboard"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/poller"
	"smart_irrigation/internal/session"
)

const queryTimeLayout = "2006-01-02"

var (
	errNotLoggedIn  = fmt.Errorf("%w: not logged in, run 'irrigationctl login'", apperr.ErrUnauthorized)
	errSessionEnded = fmt.Errorf("%w: session ended, run 'irrigationctl login'", apperr.ErrUnauthorized)
)

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return fmt.Errorf("%w: -email is required", apperr.ErrValidation)
	}

	password, err := a.password()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := a.mgr.Login(ctx, *email, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", *email)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	a.mgr.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) status(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	snap, err := a.api.Latest(ctx)
	if err != nil {
		return a.apiErr(err)
	}

	st := dashboard.State{Snapshot: &snap}
	if w, err := a.api.Weather(ctx); err == nil {
		st.Weather = &w
	} else {
		a.log.Debugw("weather_unavailable", "err", err)
	}
	st.Remaining = cooldown.NewGuard().Observe(snap)

	printView(a.out, dashboard.BuildView(st, time.Local))
	return nil
}

func (a *app) pump(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: pump on|off", apperr.ErrValidation)
	}
	var action models.CommandAction
	switch strings.ToLower(args[0]) {
	case "on":
		action = models.ActionPumpOn
	case "off":
		action = models.ActionPumpOff
	default:
		return fmt.Errorf("%w: pump on|off, got %q", apperr.ErrValidation, args[0])
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	snap, err := a.api.Latest(ctx)
	if err != nil {
		return a.apiErr(err)
	}
	remaining := cooldown.NewGuard().Observe(snap)
	if remaining > 0 {
		return fmt.Errorf("%w: Pump on cooldown: %ds remaining", dashboard.ErrCommandUnavailable, remaining)
	}
	on, off := dashboard.Controls(snap.PumpStatus, remaining)
	if (action == models.ActionPumpOn && !on) || (action == models.ActionPumpOff && !off) {
		return fmt.Errorf("%w: pump is already %s", dashboard.ErrCommandUnavailable, snap.PumpStatus)
	}

	res, err := a.api.SendCommand(ctx, action)
	if err != nil {
		var serr *apperr.StatusError
		if errors.As(err, &serr) && serr.Message != "" && !errors.Is(err, apperr.ErrUnauthorized) {
			return fmt.Errorf("Failed to send command: %s", serr.Message)
		}
		return a.apiErr(err)
	}
	if !res.Success {
		return fmt.Errorf("Failed to send command: %s", res.Message)
	}
	fmt.Fprintf(a.out, "Command '%s' sent successfully!\n", action)
	return nil
}

// watch prints every new snapshot and the cooldown countdown until
// interrupted or until the session ends.
func (a *app) watch(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ended bool
	var mu sync.Mutex
	unsubscribe := a.mgr.Subscribe(func(st session.AuthState) {
		if !st.IsAuthenticated && !st.Loading {
			mu.Lock()
			ended = true
			mu.Unlock()
			cancel()
		}
	})
	defer unsubscribe()

	out := &lockedWriter{w: a.out}
	guard := cooldown.NewGuard(
		cooldown.WithPeriod(a.cfg.Dashboard.CooldownTick),
		cooldown.WithOnChange(func(remaining int) {
			if remaining > 0 {
				fmt.Fprintf(out, "  pump on cooldown: %ds remaining\n", remaining)
			} else {
				fmt.Fprintln(out, "  pump controls available")
			}
		}),
	)
	p := poller.New(a.api, poller.Handlers{
		OnSnapshot: func(s models.DeviceSnapshot) {
			fmt.Fprintln(out, snapshotLine(s))
			guard.Observe(s)
		},
		OnWeather: func(w models.WeatherSnapshot) {
			if w.Available() {
				fmt.Fprintf(out, "  weather %s: %.1f°C, %s\n", w.City, *w.Temperature, w.Description)
			}
		},
		OnError: func(s poller.Stream, err error) {
			if s != poller.StreamWeather {
				fmt.Fprintf(out, "  %s: %v\n", s, err)
			}
		},
	},
		poller.WithInterval(a.cfg.Dashboard.PollInterval),
		poller.WithWeatherInterval(a.cfg.Dashboard.WeatherInterval),
		poller.WithLogger(a.log.Named("poller")),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		guard.Run(ctx)
	}()
	p.Run(ctx)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if ended {
		return errSessionEnded
	}
	return nil
}

func (a *app) commandLog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fromS := fs.String("from", "", "start of range (RFC3339 or YYYY-MM-DD)")
	toS := fs.String("to", "", "end of range (RFC3339, or YYYY-MM-DD for the whole day)")
	actionS := fs.String("action", "", "only on, off or automation commands")
	if err := fs.Parse(args); err != nil {
		return err
	}
	from, err := parseTimeArg(*fromS, false)
	if err != nil {
		return err
	}
	to, err := parseTimeArg(*toS, true)
	if err != nil {
		return err
	}
	action, err := parseActionArg(*actionS)
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	events, err := a.api.CommandLog(ctx, apiclient.LogQuery{From: from, To: to, Action: action})
	if err != nil {
		return a.apiErr(err)
	}
	if len(events) == 0 {
		fmt.Fprintln(a.out, "No pump commands recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tRESULT\tMESSAGE")
	for _, e := range events {
		result := "rejected"
		if e.Accepted {
			result = "accepted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.OccurredAt.Local().Format(dashboard.UpdatedLayout), e.Action, result, e.Message)
	}
	return tw.Flush()
}

func (a *app) requireSession() error {
	if !a.mgr.State().IsAuthenticated {
		return errNotLoggedIn
	}
	return nil
}

// apiErr turns a rejected credential into a hint to log in again.
func (a *app) apiErr(err error) error {
	if errors.Is(err, apperr.ErrUnauthorized) {
		return fmt.Errorf("%w (%v)", errSessionEnded, err)
	}
	return err
}

func printView(w io.Writer, v dashboard.View) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Soil moisture:\t%s\n", v.Sensor.SoilMoisture)
	fmt.Fprintf(tw, "Temperature:\t%s\n", v.Sensor.Temperature)
	fmt.Fprintf(tw, "Humidity:\t%s\n", v.Sensor.Humidity)
	fmt.Fprintf(tw, "Pump:\t%s (automation %s)\n", v.Pump.Status, strings.ToLower(v.Pump.Automation))
	if v.Pump.CooldownMessage != "" {
		fmt.Fprintf(tw, "Cooldown:\t%s\n", v.Pump.CooldownMessage)
	}
	fmt.Fprintf(tw, "Last updated:\t%s\n", v.Sensor.LastUpdated)
	if v.Weather.Available {
		fmt.Fprintf(tw, "Weather:\t%s, %s, %s, humidity %s, wind %s\n",
			v.Weather.City, v.Weather.Temperature, v.Weather.Description, v.Weather.Humidity, v.Weather.Wind)
	} else {
		fmt.Fprintf(tw, "Weather:\t%s\n", v.Weather.Message)
	}
	_ = tw.Flush()
}

func snapshotLine(s models.DeviceSnapshot) string {
	f := func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.1f", *v)
	}
	return fmt.Sprintf("%s  moisture=%s temp=%s humidity=%s pump=%s",
		s.Timestamp.Local().Format(dashboard.ChartTimeLayout), f(s.SoilMoisture), f(s.Temperature), f(s.Humidity), s.PumpStatus)
}

// parseTimeArg reads RFC3339 or a bare date. With endOfDay a bare date
// means its last instant, so "-to 2026-05-01" includes that whole day.
func parseTimeArg(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(queryTimeLayout, s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid time %q, use RFC3339 or YYYY-MM-DD", apperr.ErrValidation, s)
}

func parseActionArg(s string) (models.CommandAction, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "on":
		return models.ActionPumpOn, nil
	case "off":
		return models.ActionPumpOff, nil
	case "automation":
		return models.ActionAutomation, nil
	}
	if a := models.CommandAction(strings.ToUpper(s)); a.Valid() || a == models.ActionAutomation {
		return a, nil
	}
	return "", fmt.Errorf("%w: -action must be on, off or automation, got %q", apperr.ErrValidation, s)
}

// lockedWriter serializes output from the poller and countdown goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
