package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/submitlink/internal/database"
	"github.com/dukerupert/submitlink/internal/model"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedPerson(t *testing.T, db *sql.DB, name, email string) *model.Person {
	t.Helper()
	var e *string
	if email != "" {
		e = &email
	}
	p, err := NewPersonStore(db).Create(context.Background(), name, e, baseTime)
	if err != nil {
		t.Fatalf("seed person: %v", err)
	}
	return p
}

func seedSubmission(t *testing.T, db *sql.DB, personID int64, tokenHash string) (*model.SubmissionLink, *model.Submission) {
	t.Helper()
	ctx := context.Background()
	link, err := NewLinkStore(db).Create(ctx, personID, tokenHash, baseTime.Add(14*24*time.Hour), nil, baseTime)
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}
	sub, err := NewSubmissionStore(db).Create(ctx, link.ID, personID, baseTime)
	if err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	return link, sub
}
