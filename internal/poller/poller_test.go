package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_irrigation/internal/apiclient"
	"smart_irrigation/internal/models"
)

type latestReply struct {
	snap models.DeviceSnapshot
	err  error
}

// fakeSource answers Latest from a queue of gated replies so tests can
// force responses to complete out of issue order.
type fakeSource struct {
	mu       sync.Mutex
	gates    []chan latestReply
	called   chan string
	history  []models.DeviceSnapshot
	histErr  error
	weather  models.WeatherSnapshot
	wxErr    error
	latest   models.DeviceSnapshot
	calls    atomic.Int64
	histCall atomic.Int64
	wxCalls  atomic.Int64
	gateMode bool
}

func (f *fakeSource) Latest(ctx context.Context) (models.DeviceSnapshot, error) {
	f.calls.Add(1)
	if !f.gateMode {
		return f.latest, nil
	}
	gate := make(chan latestReply)
	f.mu.Lock()
	f.gates = append(f.gates, gate)
	f.mu.Unlock()
	f.called <- apiclient.RequestID(ctx)
	r := <-gate
	return r.snap, r.err
}

func (f *fakeSource) gate(i int) chan latestReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gates[i]
}

func (f *fakeSource) History(context.Context) ([]models.DeviceSnapshot, error) {
	f.histCall.Add(1)
	return f.history, f.histErr
}

func (f *fakeSource) Weather(context.Context) (models.WeatherSnapshot, error) {
	f.wxCalls.Add(1)
	return f.weather, f.wxErr
}

type recorder struct {
	mu        sync.Mutex
	snapshots []models.DeviceSnapshot
	histories [][]models.DeviceSnapshot
	weather   []models.WeatherSnapshot
	errs      map[Stream]int
}

func (r *recorder) handlers() Handlers {
	r.errs = make(map[Stream]int)
	return Handlers{
		OnSnapshot: func(s models.DeviceSnapshot) {
			r.mu.Lock()
			r.snapshots = append(r.snapshots, s)
			r.mu.Unlock()
		},
		OnHistory: func(h []models.DeviceSnapshot) {
			r.mu.Lock()
			r.histories = append(r.histories, h)
			r.mu.Unlock()
		},
		OnWeather: func(w models.WeatherSnapshot) {
			r.mu.Lock()
			r.weather = append(r.weather, w)
			r.mu.Unlock()
		},
		OnError: func(s Stream, _ error) {
			r.mu.Lock()
			r.errs[s]++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func snapshotAt(ts time.Time, moisture float64) models.DeviceSnapshot {
	return models.DeviceSnapshot{Timestamp: ts, SoilMoisture: models.Float(moisture), PumpStatus: models.PumpOff}
}

func TestPoller_StaleResponseDropped(t *testing.T) {
	src := &fakeSource{gateMode: true, called: make(chan string, 2)}
	rec := &recorder{}
	p := New(src, rec.handlers())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = p.fetch(ctx, StreamLatest) }()
	firstID := <-src.called
	go func() { defer wg.Done(); _ = p.fetch(ctx, StreamLatest) }()
	secondID := <-src.called
	require.Less(t, firstID, secondID, "stamps are monotonic")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	// The newer request answers first.
	src.gate(1) <- latestReply{snap: snapshotAt(base, 500)}
	require.Eventually(t, func() bool { return rec.snapshotCount() == 1 }, time.Second, time.Millisecond)

	// The older request answers late, even with a later device timestamp.
	src.gate(0) <- latestReply{snap: snapshotAt(base.Add(time.Minute), 300)}
	wg.Wait()

	require.Equal(t, 1, rec.snapshotCount())
	assert.Equal(t, 500.0, *rec.snapshots[0].SoilMoisture)
}

func TestPoller_OlderSnapshotTimestampDropped(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{latest: snapshotAt(base, 500)}
	rec := &recorder{}
	p := New(src, rec.handlers())

	require.NoError(t, p.Refresh(context.Background()))
	src.latest = snapshotAt(base.Add(-5*time.Second), 400)
	require.NoError(t, p.Refresh(context.Background()))
	src.latest = snapshotAt(base, 450)
	require.NoError(t, p.Refresh(context.Background()))

	require.Len(t, rec.snapshots, 2, "equal timestamps are applied, older ones are not")
	assert.Equal(t, 450.0, *rec.snapshots[1].SoilMoisture)
}

func TestPoller_EmptyHistory(t *testing.T) {
	src := &fakeSource{history: []models.DeviceSnapshot{}}
	rec := &recorder{}
	p := New(src, rec.handlers())

	require.NoError(t, p.fetch(context.Background(), StreamHistory))
	require.Len(t, rec.histories, 1)
	assert.Empty(t, rec.histories[0])
	assert.Zero(t, rec.errs[StreamHistory])
}

func TestPoller_ErrorsReportedPerStream(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{wxErr: boom, latest: snapshotAt(time.Now(), 1)}
	rec := &recorder{}
	p := New(src, rec.handlers())
	ctx := context.Background()

	assert.ErrorIs(t, p.fetch(ctx, StreamWeather), boom)
	require.NoError(t, p.fetch(ctx, StreamLatest))

	assert.Equal(t, 1, rec.errs[StreamWeather])
	assert.Zero(t, rec.errs[StreamLatest])
	assert.Len(t, rec.snapshots, 1, "weather failure does not affect sensor data")
}

func TestPoller_CancelledFetchNotApplied(t *testing.T) {
	src := &fakeSource{gateMode: true, called: make(chan string, 1)}
	rec := &recorder{}
	p := New(src, rec.handlers())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.fetch(ctx, StreamLatest) }()
	<-src.called
	cancel()
	src.gate(0) <- latestReply{snap: snapshotAt(time.Now(), 1)}

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, rec.snapshotCount())
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{latest: snapshotAt(time.Now(), 1), history: []models.DeviceSnapshot{}}
	rec := &recorder{}
	p := New(src, rec.handlers(), WithInterval(5*time.Millisecond), WithWeatherInterval(7*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() { p.Run(ctx); close(stopped) }()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load(), "no fetches after Run returned")
}

func TestPoller_SkipsStreamsWithoutHandler(t *testing.T) {
	src := &fakeSource{latest: snapshotAt(time.Now(), 1), history: []models.DeviceSnapshot{}}
	var got atomic.Int64
	p := New(src, Handlers{
		OnSnapshot: func(models.DeviceSnapshot) { got.Add(1) },
	}, WithInterval(5*time.Millisecond), WithWeatherInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() { p.Run(ctx); close(stopped) }()

	require.Eventually(t, func() bool { return got.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-stopped

	assert.Zero(t, src.histCall.Load(), "history has no consumer")
	assert.Zero(t, src.wxCalls.Load(), "weather has no consumer")
}
