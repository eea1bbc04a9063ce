package reporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/bus-tracking/internal/models"
)

type fakeTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}
func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeClock struct {
	ticker *fakeTicker

	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		ticker: &fakeTicker{ch: make(chan time.Time)},
		now:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *fakeClock) NewTicker(time.Duration) Ticker { return f.ticker }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(7 * time.Second)
	return f.now
}

// tick drives one timer fire and blocks until the sampling loop has fully
// consumed it (the channel is unbuffered).
func (f *fakeClock) tick(t *testing.T) {
	t.Helper()
	select {
	case f.ticker.ch <- f.now:
	case <-time.After(time.Second):
		t.Fatal("sampling loop did not consume tick")
	}
}

type fakeSource struct {
	mu       sync.Mutex
	onUpdate func(models.Coord)
	unsubbed bool
}

func (f *fakeSource) Subscribe(onUpdate func(models.Coord)) (func(), error) {
	f.mu.Lock()
	f.onUpdate = onUpdate
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubbed = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeSource) deliver(c models.Coord) {
	f.mu.Lock()
	fn := f.onUpdate
	f.mu.Unlock()
	fn(c)
}

func (f *fakeSource) isUnsubscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubbed
}

type fakeStore struct {
	mu     sync.Mutex
	writes []models.BusPosition
	fail    int // fail this many writes before succeeding
	gate    chan struct{}
	entered chan struct{}
	wrote   chan models.BusPosition
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entered: make(chan struct{}, 16),
		wrote:   make(chan models.BusPosition, 16),
	}
}

func (f *fakeStore) Upsert(ctx context.Context, p models.BusPosition) error {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	if f.fail > 0 {
		f.fail--
		f.mu.Unlock()
		f.wrote <- models.BusPosition{} // signal the attempt
		return errors.New("store unavailable")
	}
	f.writes = append(f.writes, p)
	f.mu.Unlock()
	f.wrote <- p
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func waitWrite(t *testing.T, f *fakeStore) models.BusPosition {
	t.Helper()
	select {
	case p := <-f.wrote:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for store write")
		return models.BusPosition{}
	}
}

func newTestReporter(src *fakeSource, store *fakeStore, clock *fakeClock) *Reporter {
	return &Reporter{
		BusID:    "b1",
		Nickname: "North Route",
		Source:   src,
		Store:    store,
		Interval: DefaultInterval,
		Clock:    clock,
	}
}

func TestReportsLatestFixOnEachTick(t *testing.T) {
	src := &fakeSource{}
	store := newFakeStore()
	clock := newFakeClock()
	sess, err := newTestReporter(src, store, clock).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()

	src.deliver(models.Coord{Lat: 12.90, Lng: 77.60})
	clock.tick(t)
	p := waitWrite(t, store)
	if p.BusID != "b1" || p.Loc.Lat != 12.90 {
		t.Fatalf("unexpected write: %+v", p)
	}

	src.deliver(models.Coord{Lat: 12.91, Lng: 77.61})
	clock.tick(t)
	p = waitWrite(t, store)
	if p.Loc.Lat != 12.91 {
		t.Fatalf("expected latest fix, got %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Fatal("write missing timestamp")
	}
}

func TestNoWriteBeforeFirstFix(t *testing.T) {
	src := &fakeSource{}
	store := newFakeStore()
	clock := newFakeClock()
	sess, err := newTestReporter(src, store, clock).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()

	clock.tick(t)
	select {
	case <-store.wrote:
		t.Fatal("wrote a position with no known fix")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWriteFailureDoesNotStopSampling(t *testing.T) {
	src := &fakeSource{}
	store := newFakeStore()
	store.fail = 1
	clock := newFakeClock()
	sess, err := newTestReporter(src, store, clock).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()

	src.deliver(models.Coord{Lat: 12.90, Lng: 77.60})
	clock.tick(t)
	waitWrite(t, store) // failed attempt

	clock.tick(t)
	p := waitWrite(t, store)
	if p.BusID != "b1" {
		t.Fatalf("expected successful write after failure, got %+v", p)
	}
	if store.count() != 1 {
		t.Fatalf("expected exactly 1 stored write, got %d", store.count())
	}
}

func TestStopCancelsTimerAndUnsubscribes(t *testing.T) {
	src := &fakeSource{}
	store := newFakeStore()
	clock := newFakeClock()
	sess, err := newTestReporter(src, store, clock).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	src.deliver(models.Coord{Lat: 12.90, Lng: 77.60})
	clock.tick(t)
	waitWrite(t, store)

	sess.Stop()
	if !src.isUnsubscribed() {
		t.Fatal("location subscription not released on stop")
	}
	if !clock.ticker.isStopped() {
		t.Fatal("ticker not stopped")
	}

	before := store.count()
	select {
	case clock.ticker.ch <- clock.now:
		t.Fatal("tick consumed after stop")
	case <-time.After(50 * time.Millisecond):
	}
	if store.count() != before {
		t.Fatalf("write observed after stop: %d -> %d", before, store.count())
	}
}

func TestSupersededPendingWriteIsCoalesced(t *testing.T) {
	src := &fakeSource{}
	store := newFakeStore()
	store.gate = make(chan struct{})
	clock := newFakeClock()
	sess, err := newTestReporter(src, store, clock).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()

	// first write enters the store and blocks there
	src.deliver(models.Coord{Lat: 12.90, Lng: 77.60})
	clock.tick(t)
	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("first write never reached the store")
	}

	// two more ticks while the write is in flight: the middle one must be
	// dropped in favor of the newest
	src.deliver(models.Coord{Lat: 12.91, Lng: 77.61})
	clock.tick(t)
	src.deliver(models.Coord{Lat: 12.92, Lng: 77.62})
	clock.tick(t)
	time.Sleep(50 * time.Millisecond) // let the last tick land in the pending slot

	close(store.gate)
	first := waitWrite(t, store)
	second := waitWrite(t, store)
	if first.Loc.Lat != 12.90 {
		t.Fatalf("expected in-flight write first, got %+v", first)
	}
	if second.Loc.Lat != 12.92 {
		t.Fatalf("expected newest pending write, got %+v", second)
	}
	select {
	case p := <-store.wrote:
		t.Fatalf("superseded write not coalesced: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.BusPosition
	err       error
}

func (f *fakePublisher) PublishPosition(ctx context.Context, p models.BusPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, p)
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestSuccessfulWritesAreMirroredToPublisher(t *testing.T) {
	src := &fakeSource{}
	store := newFakeStore()
	store.fail = 1
	clock := newFakeClock()
	pub := &fakePublisher{err: errors.New("broker down")} // publish errors are tolerated
	r := newTestReporter(src, store, clock)
	r.Pub = pub
	sess, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()

	src.deliver(models.Coord{Lat: 12.90, Lng: 77.60})
	clock.tick(t)
	waitWrite(t, store) // failed store write, nothing to mirror

	clock.tick(t)
	waitWrite(t, store)
	deadline := time.Now().Add(time.Second)
	for pub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("publish never observed after successful write")
		}
		time.Sleep(time.Millisecond)
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 mirrored publish, got %d", pub.count())
	}
}

func TestStartRequiresAssignedBus(t *testing.T) {
	r := newTestReporter(&fakeSource{}, newFakeStore(), newFakeClock())
	r.BusID = ""
	if _, err := r.Start(context.Background()); !errors.Is(err, ErrNoBusAssigned) {
		t.Fatalf("expected ErrNoBusAssigned, got %v", err)
	}
}
