// Package poller periodically pulls device, history and weather state from
// the backend and hands fresh results to the caller.
package poller

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"smart_irrigation/internal/apiclient"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
)

// Stream identifies one of the polled resources.
type Stream string

const (
	StreamLatest  Stream = "latest"
	StreamHistory Stream = "history"
	StreamWeather Stream = "weather"
)

const (
	DefaultInterval = 5 * time.Second
)

// Source is the backend surface the poller reads from.
type Source interface {
	Latest(ctx context.Context) (models.DeviceSnapshot, error)
	History(ctx context.Context) ([]models.DeviceSnapshot, error)
	Weather(ctx context.Context) (models.WeatherSnapshot, error)
}

// Handlers receive poll results. They run with the poller's apply lock
// held, so they must not call back into the Poller. A stream whose result
// handler is nil is not polled by Run.
type Handlers struct {
	OnSnapshot func(models.DeviceSnapshot)
	OnHistory  func([]models.DeviceSnapshot)
	OnWeather  func(models.WeatherSnapshot)
	OnError    func(Stream, error)
}

// Poller fetches each stream on its own goroutine per tick. Every request is
// stamped with a monotonic ULID; a response older than the newest applied one
// for the same stream is dropped, as is a device snapshot whose timestamp is
// older than the one already applied.
type Poller struct {
	src             Source
	h               Handlers
	interval        time.Duration
	weatherInterval time.Duration
	log             *logger.Logger
	now             func() time.Time

	stampMu sync.Mutex
	entropy *ulid.MonotonicEntropy

	mu       sync.Mutex
	applied  map[Stream]ulid.ULID
	snapTime time.Time

	wg sync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the device and history period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithWeatherInterval sets the weather period.
func WithWeatherInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.weatherInterval = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) { p.log = logger.OrNop(l) }
}

// WithClock overrides the time source used for request stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func New(src Source, h Handlers, opts ...Option) *Poller {
	p := &Poller{
		src:             src,
		h:               h,
		interval:        DefaultInterval,
		weatherInterval: DefaultInterval,
		log:             logger.Nop(),
		now:             time.Now,
		entropy:         ulid.Monotonic(rand.Reader, 0),
		applied:         make(map[Stream]ulid.ULID),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then on every tick until ctx is cancelled. It
// returns only after all in-flight fetches have finished.
func (p *Poller) Run(ctx context.Context) {
	defer p.wg.Wait()

	devices := time.NewTicker(p.interval)
	defer devices.Stop()
	weather := time.NewTicker(p.weatherInterval)
	defer weather.Stop()

	p.spawn(ctx, StreamLatest, StreamHistory, StreamWeather)
	for {
		select {
		case <-ctx.Done():
			return
		case <-devices.C:
			p.spawn(ctx, StreamLatest, StreamHistory)
		case <-weather.C:
			p.spawn(ctx, StreamWeather)
		}
	}
}

// Refresh fetches the latest device snapshot now, on the caller's goroutine.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.fetch(ctx, StreamLatest)
}

func (p *Poller) spawn(ctx context.Context, streams ...Stream) {
	for _, s := range streams {
		if !p.wants(s) {
			continue
		}
		p.wg.Add(1)
		go func(s Stream) {
			defer p.wg.Done()
			_ = p.fetch(ctx, s)
		}(s)
	}
}

func (p *Poller) wants(s Stream) bool {
	switch s {
	case StreamLatest:
		return p.h.OnSnapshot != nil
	case StreamHistory:
		return p.h.OnHistory != nil
	case StreamWeather:
		return p.h.OnWeather != nil
	}
	return false
}

func (p *Poller) stamp() ulid.ULID {
	p.stampMu.Lock()
	defer p.stampMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(p.now()), p.entropy)
	if err != nil {
		// Entropy exhausted within one millisecond; fall back to a fresh source.
		p.entropy = ulid.Monotonic(rand.Reader, 0)
		id = ulid.MustNew(ulid.Timestamp(p.now()), p.entropy)
	}
	return id
}

func (p *Poller) fetch(ctx context.Context, s Stream) error {
	id := p.stamp()
	rctx := apiclient.WithRequestID(ctx, id.String())

	var (
		snap    models.DeviceSnapshot
		history []models.DeviceSnapshot
		wx      models.WeatherSnapshot
		err     error
	)
	switch s {
	case StreamLatest:
		snap, err = p.src.Latest(rctx)
	case StreamHistory:
		history, err = p.src.History(rctx)
	case StreamWeather:
		wx, err = p.src.Weather(rctx)
	}

	if ctx.Err() != nil {
		// Torn down while in flight; nothing may be applied after cancellation.
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.applied[s]; ok && id.Compare(last) <= 0 {
		p.log.Debugw("poll_stale_dropped", "stream", s, "request_id", id.String())
		return err
	}

	if err != nil {
		p.log.Warnw("poll_failed", "stream", s, "request_id", id.String(), "err", err)
		if p.h.OnError != nil {
			p.h.OnError(s, err)
		}
		return err
	}

	switch s {
	case StreamLatest:
		if !p.snapTime.IsZero() && snap.Timestamp.Before(p.snapTime) {
			p.log.Debugw("poll_old_snapshot_dropped", "timestamp", snap.Timestamp, "held", p.snapTime)
			return nil
		}
		p.snapTime = snap.Timestamp
		if p.h.OnSnapshot != nil {
			p.h.OnSnapshot(snap)
		}
	case StreamHistory:
		if p.h.OnHistory != nil {
			p.h.OnHistory(history)
		}
	case StreamWeather:
		if p.h.OnWeather != nil {
			p.h.OnWeather(wx)
		}
	}
	p.applied[s] = id
	return nil
}
