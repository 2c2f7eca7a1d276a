package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brieflab/models"
)

func TestStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute)
	s.now = func() time.Time { return now }

	if err := s.Put(context.Background(), models.Run{ID: "a", Status: models.RunProcessing}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := s.Get(context.Background(), "a"); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("expected expired run to be gone, got %v", err)
	}
	if err := s.Put(context.Background(), models.Run{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
