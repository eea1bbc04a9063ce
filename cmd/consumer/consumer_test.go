package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/bus-tracking/internal/models"
)

// fakeMirror implements PositionMirror for tests
type fakeMirror struct {
	fail  int // number of times to fail before succeeding
	calls int
	last  models.BusPosition
}

func (f *fakeMirror) Upsert(ctx context.Context, p models.BusPosition) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("mirror fail")
	}
	f.last = p
	return nil
}

func TestUpdateMirrorWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeMirror{fail: 1}
	p := models.BusPosition{BusID: "b1", Loc: models.Coord{Lat: 1, Lng: 2}, Status: models.StatusRunning}
	ctx := context.Background()
	start := time.Now()
	if err := updateMirrorWithRetry(ctx, f, p, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls < 2 {
		t.Fatalf("expected retries, got %d calls", f.calls)
	}
	if f.last.BusID != "b1" {
		t.Fatalf("mirror missing position: %+v", f.last)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateMirrorWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeMirror{fail: 5}
	p := models.BusPosition{BusID: "b1", Loc: models.Coord{Lat: 1, Lng: 2}}
	if err := updateMirrorWithRetry(context.Background(), f, p, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
