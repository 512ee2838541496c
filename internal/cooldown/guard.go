package cooldown

import (
	"context"
	"sync"
	"time"

	"smart_irrigation/internal/models"
)

// DefaultPeriod is the countdown refresh period.
const DefaultPeriod = time.Second

// window is the cooldown input carried by a device snapshot.
type window struct {
	lastCommandMillis int64
	cooldownSeconds   int
}

// Guard keeps a live countdown for the pump controls.
//
// Observe recomputes immediately from a fresh snapshot; Run refreshes the
// value every period while the countdown is above zero and idles at zero.
type Guard struct {
	period   time.Duration
	now      func() time.Time
	onChange func(remaining int)

	mu        sync.Mutex
	win       window
	remaining int
	ticking   bool

	kick chan struct{}
}

// Option configures a Guard.
type Option func(*Guard)

// WithPeriod overrides the refresh period.
func WithPeriod(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.period = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithOnChange registers a callback fired whenever the remaining value changes.
// It runs on the goroutine that caused the change and must not block.
func WithOnChange(fn func(remaining int)) Option {
	return func(g *Guard) { g.onChange = fn }
}

// NewGuard returns an idle guard.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		period: DefaultPeriod,
		now:    time.Now,
		kick:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Observe feeds a fresh snapshot. The countdown is recomputed right away and
// the refresh loop is woken if a new window started.
func (g *Guard) Observe(s models.DeviceSnapshot) int {
	remaining := g.set(window{
		lastCommandMillis: s.LastPumpCommandTime,
		cooldownSeconds:   s.PumpCooldownSeconds,
	})
	select {
	case g.kick <- struct{}{}:
	default:
	}
	return remaining
}

// Reset drops the current window, pinning the countdown to zero.
func (g *Guard) Reset() {
	g.Observe(models.DeviceSnapshot{})
}

// Remaining returns the last computed countdown.
func (g *Guard) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// Active reports whether commands are currently blocked.
func (g *Guard) Active() bool { return g.Remaining() > 0 }

// Ticking reports whether the refresh loop currently holds a ticker.
func (g *Guard) Ticking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ticking
}

// Run drives the countdown until ctx is cancelled. The ticker only exists
// while the countdown is above zero.
func (g *Guard) Run(ctx context.Context) {
	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
		g.setTicking(false)
	}
	start := func() {
		if ticker == nil {
			ticker = time.NewTicker(g.period)
			tickC = ticker.C
		}
		g.setTicking(true)
	}
	defer stop()

	// A window may have been observed before Run started.
	if g.Active() {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.kick:
			if g.recompute() > 0 {
				start()
			} else {
				stop()
			}
		case <-tickC:
			if g.recompute() == 0 {
				stop()
			}
		}
	}
}

func (g *Guard) set(w window) int {
	g.mu.Lock()
	g.win = w
	changed, remaining := g.updateLocked()
	g.mu.Unlock()
	g.notify(changed, remaining)
	return remaining
}

func (g *Guard) recompute() int {
	g.mu.Lock()
	changed, remaining := g.updateLocked()
	g.mu.Unlock()
	g.notify(changed, remaining)
	return remaining
}

func (g *Guard) updateLocked() (bool, int) {
	next := Remaining(g.now(), g.win.lastCommandMillis, g.win.cooldownSeconds)
	changed := next != g.remaining
	g.remaining = next
	return changed, next
}

func (g *Guard) notify(changed bool, remaining int) {
	if changed && g.onChange != nil {
		g.onChange(remaining)
	}
}

func (g *Guard) setTicking(v bool) {
	g.mu.Lock()
	g.ticking = v
	g.mu.Unlock()
}
