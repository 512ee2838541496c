package cooldown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_irrigation/internal/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func snapshotAt(last time.Time, cooldown int) models.DeviceSnapshot {
	return models.DeviceSnapshot{
		PumpStatus:          models.PumpOn,
		LastPumpCommandTime: last.UnixMilli(),
		PumpCooldownSeconds: cooldown,
	}
}

func TestGuard_ObserveRecomputesImmediately(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	g := NewGuard(WithClock(clock.Now))

	got := g.Observe(snapshotAt(clock.Now().Add(-3*time.Second), 5))
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, g.Remaining())
	assert.True(t, g.Active())

	g.Reset()
	assert.Zero(t, g.Remaining())
	assert.False(t, g.Active())
}

func TestGuard_NoWindowNeverTicks(t *testing.T) {
	g := NewGuard(WithPeriod(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { g.Run(ctx); close(done) }()

	g.Observe(models.DeviceSnapshot{PumpStatus: models.PumpOff, PumpCooldownSeconds: 30})
	time.Sleep(30 * time.Millisecond)
	assert.False(t, g.Ticking())
	assert.Zero(t, g.Remaining())

	cancel()
	<-done
}

func TestGuard_CountsDownAndStopsAtZero(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}

	var (
		mu      sync.Mutex
		changes []int
	)
	g := NewGuard(
		WithClock(clock.Now),
		WithPeriod(2*time.Millisecond),
		WithOnChange(func(r int) {
			mu.Lock()
			changes = append(changes, r)
			mu.Unlock()
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { g.Run(ctx); close(done) }()

	g.Observe(snapshotAt(clock.Now(), 3))
	require.Eventually(t, g.Ticking, time.Second, time.Millisecond)
	assert.Equal(t, 3, g.Remaining())

	clock.Advance(1500 * time.Millisecond)
	require.Eventually(t, func() bool { return g.Remaining() == 2 }, time.Second, time.Millisecond)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return g.Remaining() == 0 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !g.Ticking() }, time.Second, time.Millisecond)

	mu.Lock()
	got := append([]int(nil), changes...)
	mu.Unlock()
	assert.Equal(t, []int{3, 2, 0}, got)

	// A newer command restarts the countdown.
	g.Observe(snapshotAt(clock.Now(), 3))
	require.Eventually(t, g.Ticking, time.Second, time.Millisecond)
	assert.Equal(t, 3, g.Remaining())

	cancel()
	<-done
	assert.False(t, g.Ticking(), "ticker must be released on cancellation")
}

func TestGuard_RunPicksUpWindowObservedBeforeStart(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	g := NewGuard(WithClock(clock.Now), WithPeriod(2*time.Millisecond))
	g.Observe(snapshotAt(clock.Now(), 10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { g.Run(ctx); close(done) }()

	require.Eventually(t, g.Ticking, time.Second, time.Millisecond)
	cancel()
	<-done
}
