package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/session"
)

// fakeSession is an in-memory stand-in for session.Manager.
type fakeSession struct {
	mu       sync.Mutex
	state    session.AuthState
	password string
	subs     map[int]func(session.AuthState)
	next     int
}

func newFakeSession(st session.AuthState) *fakeSession {
	return &fakeSession{state: st, password: "irrigate", subs: make(map[int]func(session.AuthState))}
}

func (f *fakeSession) State() session.AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Subscribe(fn func(session.AuthState)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeSession) set(st session.AuthState) {
	f.mu.Lock()
	f.state = st
	fns := make([]func(session.AuthState), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (f *fakeSession) Login(_ context.Context, _ string, password string) error {
	if password != f.password {
		return &apperr.AuthError{Message: "Invalid email or password"}
	}
	f.set(session.AuthState{IsAuthenticated: true})
	return nil
}

func (f *fakeSession) Logout(context.Context) {
	f.set(session.AuthState{})
}

// fakeBackend serves fixed data and records commands.
type fakeBackend struct {
	mu          sync.Mutex
	latest      models.DeviceSnapshot
	history     []models.DeviceSnapshot
	weather     models.WeatherSnapshot
	latestErr   error
	cmdResult   models.CommandResult
	cmdErr      error
	commands    []models.CommandAction
	latestCalls atomic.Int64
}

func (b *fakeBackend) Latest(context.Context) (models.DeviceSnapshot, error) {
	b.latestCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.latestErr
}

func (b *fakeBackend) History(context.Context) ([]models.DeviceSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history, nil
}

func (b *fakeBackend) Weather(context.Context) (models.WeatherSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.weather.City == "" {
		return models.WeatherSnapshot{}, errors.New("weather unavailable")
	}
	return b.weather, nil
}

func (b *fakeBackend) SendCommand(_ context.Context, a models.CommandAction) (models.CommandResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, a)
	return b.cmdResult, b.cmdErr
}

func (b *fakeBackend) setLatest(s models.DeviceSnapshot) {
	b.mu.Lock()
	b.latest = s
	b.mu.Unlock()
}

func (b *fakeBackend) commandCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.commands)
}
