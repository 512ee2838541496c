// Package dashboard is the operator web UI: it runs the polling and cooldown
// loops for the authenticated session and renders their state.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/cooldown"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/poller"
	"smart_irrigation/internal/session"
)

// Backend is the API surface the dashboard uses.
type Backend interface {
	poller.Source
	SendCommand(ctx context.Context, action models.CommandAction) (models.CommandResult, error)
}

// Auth is the session surface the dashboard depends on.
type Auth interface {
	State() session.AuthState
	Subscribe(fn func(session.AuthState)) (cancel func())
}

// ErrCommandUnavailable is returned when the pump control for the requested
// action is disabled.
var ErrCommandUnavailable = fmt.Errorf("%w: pump command unavailable", apperr.ErrValidation)

const msgCommandNetwork = "Failed to send command due to network error. Check backend and login status."

// Settings tunes the runtime loops.
type Settings struct {
	PollInterval    time.Duration
	WeatherInterval time.Duration
	CooldownTick    time.Duration
	Location        *time.Location
	Now             func() time.Time
}

// loop is one authenticated session's polling and countdown.
type loop struct {
	gen    uint64
	cancel context.CancelFunc
	poll   *poller.Poller
	guard  *cooldown.Guard
	done   chan struct{}
}

// Runtime starts the loops when the session becomes authenticated and tears
// them down on logout or shutdown.
type Runtime struct {
	auth Auth
	api  Backend
	log  *logger.Logger
	set  Settings

	mu      sync.Mutex
	parent  context.Context
	gen     uint64
	cur     *loop
	st      State
	version uint64

	watchMu  sync.Mutex
	watchers map[uint64]chan struct{}
	nextID   uint64
}

func NewRuntime(auth Auth, api Backend, set Settings, log *logger.Logger) *Runtime {
	if set.Now == nil {
		set.Now = time.Now
	}
	if set.Location == nil {
		set.Location = time.Local
	}
	return &Runtime{
		auth:     auth,
		api:      api,
		log:      logger.OrNop(log),
		set:      set,
		st:       State{Loading: true},
		watchers: make(map[uint64]chan struct{}),
	}
}

// Run follows the session until ctx is cancelled, then stops any running
// loop and waits for it to finish.
func (r *Runtime) Run(ctx context.Context) {
	r.mu.Lock()
	r.parent = ctx
	r.mu.Unlock()

	unsubscribe := r.auth.Subscribe(r.onAuth)
	defer unsubscribe()
	r.onAuth(r.auth.State())

	<-ctx.Done()

	r.mu.Lock()
	l := r.stopLocked()
	r.mu.Unlock()
	if l != nil {
		<-l.done
	}
	r.log.Infow("dashboard_runtime_stopped")
}

// onAuth may run inside a poll request (a 401 answer), so it never waits for
// the loop it cancels.
func (r *Runtime) onAuth(st session.AuthState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parent == nil || r.parent.Err() != nil {
		return
	}
	switch {
	case st.IsAuthenticated && r.cur == nil:
		r.startLocked()
	case !st.IsAuthenticated && r.cur != nil:
		r.stopLocked()
		r.st = State{Loading: true}
		r.bumpLocked()
	}
}

func (r *Runtime) startLocked() {
	ctx, cancel := context.WithCancel(r.parent)
	r.gen++
	gen := r.gen

	guard := cooldown.NewGuard(
		cooldown.WithPeriod(r.set.CooldownTick),
		cooldown.WithClock(r.set.Now),
		cooldown.WithOnChange(func(n int) {
			r.update(gen, func(st *State) { st.Remaining = n })
		}),
	)
	poll := poller.New(r.api, poller.Handlers{
		OnSnapshot: func(s models.DeviceSnapshot) {
			guard.Observe(s)
			r.update(gen, func(st *State) {
				st.Snapshot = &s
				st.SensorError = ""
			})
		},
		OnHistory: func(h []models.DeviceSnapshot) {
			r.update(gen, func(st *State) {
				st.History = h
				st.Loading = false
				st.LoadError = ""
			})
		},
		OnWeather: func(w models.WeatherSnapshot) {
			r.update(gen, func(st *State) { st.Weather = &w })
		},
		OnError: func(s poller.Stream, err error) {
			r.update(gen, func(st *State) { applyError(st, s) })
		},
	},
		poller.WithInterval(r.set.PollInterval),
		poller.WithWeatherInterval(r.set.WeatherInterval),
		poller.WithLogger(r.log),
	)

	l := &loop{gen: gen, cancel: cancel, poll: poll, guard: guard, done: make(chan struct{})}
	r.cur = l
	r.st = State{Loading: true}
	r.bumpLocked()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); guard.Run(ctx) }()
	go func() { defer wg.Done(); poll.Run(ctx) }()
	go func() { wg.Wait(); close(l.done) }()

	r.log.Infow("dashboard_loops_started", "generation", gen)
}

func (r *Runtime) stopLocked() *loop {
	l := r.cur
	if l == nil {
		return nil
	}
	l.cancel()
	r.cur = nil
	r.log.Infow("dashboard_loops_stopped", "generation", l.gen)
	return l
}

// applyError maps a failed fetch onto the view. Weather failures never
// block or clear the sensor display.
func applyError(st *State, s poller.Stream) {
	switch s {
	case poller.StreamLatest:
		st.SensorError = msgLatestFailed
	case poller.StreamHistory:
		if st.History == nil {
			st.LoadError = msgHistoryFailed
		} else {
			st.SensorError = msgHistoryFailed
		}
		st.Loading = false
	}
}

// update applies fn if generation gen is still the running loop.
func (r *Runtime) update(gen uint64, fn func(*State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || r.cur.gen != gen {
		return
	}
	fn(&r.st)
	r.bumpLocked()
}

func (r *Runtime) bumpLocked() {
	r.version++
	r.watchMu.Lock()
	for _, ch := range r.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	r.watchMu.Unlock()
}

// State returns a copy of the current dashboard state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.st
	st.History = append([]models.DeviceSnapshot(nil), r.st.History...)
	if r.st.History != nil && st.History == nil {
		st.History = []models.DeviceSnapshot{}
	}
	return st
}

// View renders the current state.
func (r *Runtime) View() View {
	return BuildView(r.State(), r.set.Location)
}

// Watch returns a channel signalled after every state change. Signals
// coalesce; readers should re-read View.
func (r *Runtime) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	r.watchMu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = ch
	r.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.watchMu.Lock()
			delete(r.watchers, id)
			r.watchMu.Unlock()
		})
	}
}

// SendCommand issues a pump command if its control is enabled. On success
// the latest snapshot is re-fetched right away so the new status and
// cooldown show without waiting for the next poll.
func (r *Runtime) SendCommand(ctx context.Context, action models.CommandAction) (models.CommandResult, error) {
	if !action.Valid() {
		return models.CommandResult{}, fmt.Errorf("%w: unknown action %q", apperr.ErrValidation, action)
	}

	r.mu.Lock()
	l := r.cur
	status := models.PumpOff
	if r.st.Snapshot != nil {
		status = r.st.Snapshot.PumpStatus
	}
	remaining := r.st.Remaining
	r.mu.Unlock()

	if l == nil || !r.auth.State().IsAuthenticated {
		return models.CommandResult{}, apperr.ErrUnauthorized
	}
	on, off := Controls(status, remaining)
	if (action == models.ActionPumpOn && !on) || (action == models.ActionPumpOff && !off) {
		return models.CommandResult{}, ErrCommandUnavailable
	}

	res, err := r.api.SendCommand(ctx, action)
	if err != nil {
		r.log.Warnw("dashboard_command_failed", "action", action, "err", err)
		msg := msgCommandNetwork
		var se *apperr.StatusError
		if errors.As(err, &se) && se.Message != "" {
			msg = "Failed to send command: " + se.Message
		}
		r.update(l.gen, func(st *State) { st.Notice = msg })
		return res, err
	}
	if !res.Success {
		r.update(l.gen, func(st *State) { st.Notice = "Failed to send command: " + res.Message })
		return res, nil
	}

	r.log.Infow("dashboard_command_sent", "action", action)
	r.update(l.gen, func(st *State) { st.Notice = fmt.Sprintf("Command '%s' sent successfully!", action) })
	if err := l.poll.Refresh(ctx); err != nil {
		r.log.Warnw("dashboard_refresh_failed", "err", err)
	}
	return res, nil
}
