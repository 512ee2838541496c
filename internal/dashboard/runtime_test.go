package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/session"
)

func startRuntime(t *testing.T, sess *fakeSession, be *fakeBackend) *Runtime {
	t.Helper()
	rt := NewRuntime(sess, be, Settings{
		PollInterval:    20 * time.Millisecond,
		WeatherInterval: 20 * time.Millisecond,
		CooldownTick:    10 * time.Millisecond,
		Location:        time.UTC,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { rt.Run(ctx); close(done) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rt
}

func offSnapshot(ts time.Time) models.DeviceSnapshot {
	return models.DeviceSnapshot{
		SoilMoisture: models.Float(512),
		PumpStatus:   models.PumpOff,
		Temperature:  models.Float(24),
		Humidity:     models.Float(60),
		Timestamp:    ts,
	}
}

func TestRuntime_PopulatesWhenAuthenticated(t *testing.T) {
	sess := newFakeSession(session.AuthState{IsAuthenticated: true})
	be := &fakeBackend{
		latest:  offSnapshot(time.Now()),
		history: []models.DeviceSnapshot{},
		weather: models.WeatherSnapshot{City: "Nairobi", Temperature: models.Float(25), Icon: "01d"},
	}
	rt := startRuntime(t, sess, be)

	require.Eventually(t, func() bool {
		v := rt.View()
		return !v.Loading && v.Sensor.SoilMoisture == "512" && v.Weather.Available
	}, time.Second, 5*time.Millisecond)

	v := rt.View()
	assert.Empty(t, v.Error)
	assert.True(t, v.Pump.OnEnabled)
	assert.False(t, v.Pump.OffEnabled)
	for _, c := range v.Charts {
		assert.Empty(t, c.Points)
	}
}

func TestRuntime_IdleUntilAuthenticated(t *testing.T) {
	sess := newFakeSession(session.AuthState{})
	be := &fakeBackend{latest: offSnapshot(time.Now()), history: []models.DeviceSnapshot{}}
	rt := startRuntime(t, sess, be)

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, be.latestCalls.Load())
	assert.True(t, rt.View().Loading)

	sess.set(session.AuthState{IsAuthenticated: true})
	require.Eventually(t, func() bool { return be.latestCalls.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestRuntime_LogoutStopsLoops(t *testing.T) {
	sess := newFakeSession(session.AuthState{IsAuthenticated: true})
	be := &fakeBackend{latest: offSnapshot(time.Now()), history: []models.DeviceSnapshot{}}
	rt := startRuntime(t, sess, be)

	require.Eventually(t, func() bool { return rt.View().Sensor.SoilMoisture == "512" }, time.Second, 5*time.Millisecond)

	sess.Logout(context.Background())
	assert.True(t, rt.View().Loading)
	assert.Equal(t, "N/A", rt.View().Sensor.SoilMoisture, "state of the ended session is dropped")

	time.Sleep(30 * time.Millisecond)
	calls := be.latestCalls.Load()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, calls, be.latestCalls.Load(), "no polling after logout")
}

func TestRuntime_FetchFailures(t *testing.T) {
	sess := newFakeSession(session.AuthState{IsAuthenticated: true})
	be := &fakeBackend{
		latest:    offSnapshot(time.Now()),
		latestErr: errors.New("connection refused"),
		history:   []models.DeviceSnapshot{},
	}
	rt := startRuntime(t, sess, be)

	require.Eventually(t, func() bool { return rt.View().Banner == msgLatestFailed }, time.Second, 5*time.Millisecond)
	v := rt.View()
	assert.Empty(t, v.Error, "latest failures do not block the view")
	assert.False(t, v.Weather.Available, "weather failure only hides the weather card")

	be.mu.Lock()
	be.latestErr = nil
	be.mu.Unlock()
	require.Eventually(t, func() bool { return rt.View().Banner == "" }, time.Second, 5*time.Millisecond)
}

func TestRuntime_SendCommandWhileCooling(t *testing.T) {
	sess := newFakeSession(session.AuthState{IsAuthenticated: true})
	snap := offSnapshot(time.Now())
	snap.LastPumpCommandTime = time.Now().UnixMilli()
	snap.PumpCooldownSeconds = 30
	be := &fakeBackend{latest: snap, history: []models.DeviceSnapshot{}}
	rt := startRuntime(t, sess, be)

	require.Eventually(t, func() bool { return rt.View().Pump.CooldownRemaining > 0 }, time.Second, 5*time.Millisecond)

	_, err := rt.SendCommand(context.Background(), models.ActionPumpOn)
	assert.ErrorIs(t, err, ErrCommandUnavailable)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, be.commandCount())
}

func TestRuntime_SendCommandRefreshesLatest(t *testing.T) {
	sess := newFakeSession(session.AuthState{IsAuthenticated: true})
	start := time.Now()
	be := &fakeBackend{
		latest:    offSnapshot(start),
		history:   []models.DeviceSnapshot{},
		cmdResult: models.CommandResult{Success: true, Message: "Pump turned ON"},
	}
	rt := NewRuntime(sess, be, Settings{PollInterval: time.Hour, WeatherInterval: time.Hour, Location: time.UTC}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { rt.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	require.Eventually(t, func() bool { return rt.View().Sensor.PumpStatus == "OFF" && !rt.View().Loading }, time.Second, 5*time.Millisecond)

	on := offSnapshot(start.Add(time.Second))
	on.PumpStatus = models.PumpOn
	on.LastPumpCommandTime = time.Now().UnixMilli()
	on.PumpCooldownSeconds = 30
	be.setLatest(on)

	res, err := rt.SendCommand(context.Background(), models.ActionPumpOn)
	require.NoError(t, err)
	assert.True(t, res.Success)

	v := rt.View()
	assert.Equal(t, "ON", v.Sensor.PumpStatus, "latest re-fetched without waiting for the next poll")
	assert.Positive(t, v.Pump.CooldownRemaining)
	assert.Equal(t, "Command 'TURN_PUMP_ON' sent successfully!", v.Notice)
}

func TestRuntime_SendCommandRejectedByBackend(t *testing.T) {
	sess := newFakeSession(session.AuthState{IsAuthenticated: true})
	be := &fakeBackend{
		latest:    offSnapshot(time.Now()),
		history:   []models.DeviceSnapshot{},
		cmdResult: models.CommandResult{Success: false, Message: "Pump is cooling down"},
	}
	rt := startRuntime(t, sess, be)
	require.Eventually(t, func() bool { return rt.View().Sensor.PumpStatus == "OFF" }, time.Second, 5*time.Millisecond)

	res, err := rt.SendCommand(context.Background(), models.ActionPumpOn)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Failed to send command: Pump is cooling down", rt.View().Notice)
}

func TestRuntime_SendCommandUnauthenticated(t *testing.T) {
	sess := newFakeSession(session.AuthState{})
	rt := startRuntime(t, sess, &fakeBackend{})

	_, err := rt.SendCommand(context.Background(), models.ActionPumpOff)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
