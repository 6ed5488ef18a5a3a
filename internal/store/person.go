package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

// PersonStore reads the people mirror. Writes exist for seeding and tests;
// the HR system owns these rows.
type PersonStore struct {
	db DBTX
}

func NewPersonStore(db DBTX) *PersonStore {
	return &PersonStore{db: db}
}

func (s *PersonStore) Create(ctx context.Context, name string, email *string, now time.Time) (*model.Person, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO people (name, email, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, stringArg(email), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PersonStore) GetByID(ctx context.Context, id int64) (*model.Person, error) {
	var p model.Person
	var email sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM people WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	p.Email = nullStringPtr(email)
	return &p, nil
}

// GetDefaultEmail returns the person's email on file, or nil when the person
// is unknown or has none.
func (s *PersonStore) GetDefaultEmail(ctx context.Context, id int64) (*string, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if p.Email == nil || *p.Email == "" {
		return nil, nil
	}
	return p.Email, nil
}
