package store

import (
	"context"
	"testing"
	"time"
)

func TestChallengeGetLatestAndConsumeActive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedPerson(t, db, "Ada", "")
	_, sub := seedSubmission(t, db, p.ID, "h")
	cs := NewChallengeStore(db)

	none, err := cs.GetLatest(ctx, sub.ID, "ada@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if none != nil {
		t.Error("expected nil before any challenge")
	}

	first, err := cs.Create(ctx, sub.ID, "ada@example.com", "hash1", baseTime.Add(10*time.Minute), 5, baseTime)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.AttemptsLeft != 5 {
		t.Errorf("attempts_left = %d, want 5", first.AttemptsLeft)
	}

	if err := cs.ConsumeActive(ctx, sub.ID, "ada@example.com", baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("consume active: %v", err)
	}
	second, _ := cs.Create(ctx, sub.ID, "ada@example.com", "hash2", baseTime.Add(11*time.Minute), 5, baseTime.Add(time.Minute))

	latest, err := cs.GetLatest(ctx, sub.ID, "ada@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest id = %d, want %d", latest.ID, second.ID)
	}
	if latest.ConsumedAt != nil {
		t.Error("latest challenge should be unconsumed")
	}

	other, _ := cs.GetLatest(ctx, sub.ID, "other@example.com")
	if other != nil {
		t.Error("challenges are scoped by email")
	}
}

func TestChallengeDecrementAttempts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedPerson(t, db, "Ada", "")
	_, sub := seedSubmission(t, db, p.ID, "h")
	cs := NewChallengeStore(db)

	c, _ := cs.Create(ctx, sub.ID, "ada@example.com", "hash", baseTime.Add(10*time.Minute), 2, baseTime)

	left, ok, err := cs.DecrementAttempts(ctx, c.ID)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !ok || left != 1 {
		t.Errorf("left, ok = %d, %v, want 1, true", left, ok)
	}
	left, ok, _ = cs.DecrementAttempts(ctx, c.ID)
	if !ok || left != 0 {
		t.Errorf("left, ok = %d, %v, want 0, true", left, ok)
	}
	_, ok, _ = cs.DecrementAttempts(ctx, c.ID)
	if ok {
		t.Error("expected no decrement at zero attempts")
	}

	fresh, _ := cs.Create(ctx, sub.ID, "ada@example.com", "hash", baseTime.Add(10*time.Minute), 5, baseTime)
	cs.Consume(ctx, fresh.ID, baseTime)
	if _, ok, _ := cs.DecrementAttempts(ctx, fresh.ID); ok {
		t.Error("expected no decrement on consumed challenge")
	}
}

func TestChallengeDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedPerson(t, db, "Ada", "")
	_, sub := seedSubmission(t, db, p.ID, "h")
	cs := NewChallengeStore(db)

	cs.Create(ctx, sub.ID, "a@example.com", "x", baseTime.Add(-time.Minute), 5, baseTime.Add(-time.Hour))
	cs.Create(ctx, sub.ID, "b@example.com", "y", baseTime.Add(time.Minute), 5, baseTime)

	n, err := cs.DeleteExpired(ctx, baseTime)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
