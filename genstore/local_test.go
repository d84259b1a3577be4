package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalBumpIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, _ := s.Snapshot(ctx, "k"); g != 0 {
		t.Fatalf("missing key gen=%d want 0", g)
	}
	for want := uint64(1); want <= 3; want++ {
		g, err := s.Bump(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if g != want {
			t.Fatalf("bump=%d want %d", g, want)
		}
	}
	if g, _ := s.Snapshot(ctx, "other"); g != 0 {
		t.Fatalf("bump leaked into other key: %d", g)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	base := time.Unix(1700000000, 0)
	s.now = func() time.Time { return base }
	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(2 * time.Second) }
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}

	s.Cleanup(time.Second)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
	if g, _ := s.Snapshot(ctx, "fresh"); g != 1 {
		t.Fatalf("fresh gen=%d want 1", g)
	}
	if s.Len() != 1 {
		t.Fatalf("len=%d want 1", s.Len())
	}
}

func TestLocalCloseTwice(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Minute)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
