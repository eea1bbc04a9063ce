package storage

import (
	"context"
	"testing"
	"time"

	"github.com/example/bus-tracking/internal/models"
)

func TestListIncludesOwnAndBroadcast(t *testing.T) {
	s := NewMemoryNotificationStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := []models.Notification{
		{ID: "n1", RiderID: "r1", Message: "for r1", CreatedAt: base},
		{ID: "n2", RiderID: "r2", Message: "for r2", CreatedAt: base.Add(time.Minute)},
		{ID: "n3", Message: "broadcast", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, n := range rows {
		if err := s.Insert(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	got, err := s.List(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows for r1, got %d", len(got))
	}
	if got[0].ID != "n3" || got[1].ID != "n1" {
		t.Fatalf("expected newest-first [n3 n1], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestFeedDeliversInserts(t *testing.T) {
	feed := NewFeed(NewMemoryNotificationStore())
	var seen []models.Notification
	cancel := feed.Subscribe(func(n models.Notification) { seen = append(seen, n) })
	defer cancel()

	n := models.Notification{ID: "n1", RiderID: "r1", Message: "hi", CreatedAt: time.Now()}
	if err := feed.Insert(context.Background(), n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(seen) != 1 || seen[0].ID != "n1" {
		t.Fatalf("observer not delivered: %+v", seen)
	}
}

func TestFeedUnsubscribeStopsDelivery(t *testing.T) {
	feed := NewFeed(NewMemoryNotificationStore())
	calls := 0
	cancel := feed.Subscribe(func(models.Notification) { calls++ })
	if err := feed.Insert(context.Background(), models.Notification{ID: "n1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cancel()
	cancel() // teardown is safe to repeat
	if err := feed.Insert(context.Background(), models.Notification{ID: "n2"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
}

type failingNotificationStore struct{ err error }

func (f *failingNotificationStore) Insert(context.Context, models.Notification) error { return f.err }
func (f *failingNotificationStore) List(context.Context, string) ([]models.Notification, error) {
	return nil, f.err
}

func TestFeedSkipsObserversOnFailedInsert(t *testing.T) {
	feed := NewFeed(&failingNotificationStore{err: context.DeadlineExceeded})
	calls := 0
	defer feed.Subscribe(func(models.Notification) { calls++ })()
	if err := feed.Insert(context.Background(), models.Notification{ID: "n1"}); err == nil {
		t.Fatal("expected insert error")
	}
	if calls != 0 {
		t.Fatalf("observers must only see durable inserts, got %d calls", calls)
	}
}
