package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

type LinkStore struct {
	db DBTX
}

func NewLinkStore(db DBTX) *LinkStore {
	return &LinkStore{db: db}
}

func scanLink(row scanner) (*model.SubmissionLink, error) {
	var l model.SubmissionLink
	var revokedAt sql.NullTime
	var createdBy sql.NullInt64
	err := row.Scan(&l.ID, &l.PersonID, &l.TokenHash, &l.ExpiresAt, &revokedAt, &createdBy, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.ExpiresAt = l.ExpiresAt.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	l.RevokedAt = nullTimePtr(revokedAt)
	l.CreatedByPersonID = nullInt64Ptr(createdBy)
	return &l, nil
}

const linkCols = `id, person_id, token_hash, expires_at, revoked_at, created_by_person_id, created_at`

// RevokeActiveLinksForPerson revokes every unrevoked, unexpired link owned by
// personID and returns how many were revoked.
func (s *LinkStore) RevokeActiveLinksForPerson(ctx context.Context, personID int64, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submission_links SET revoked_at = ? WHERE person_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		now, personID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke active links: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *LinkStore) Create(ctx context.Context, personID int64, tokenHash string, expiresAt time.Time, createdBy *int64, now time.Time) (*model.SubmissionLink, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_links (person_id, token_hash, expires_at, created_by_person_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		personID, tokenHash, expiresAt, int64Arg(createdBy), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+linkCols+` FROM submission_links WHERE id = ?`, id)
	return scanLink(row)
}

// GetByTokenHash returns the link regardless of revocation or expiry, or nil
// if no link carries that hash.
func (s *LinkStore) GetByTokenHash(ctx context.Context, tokenHash string) (*model.SubmissionLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkCols+` FROM submission_links WHERE token_hash = ?`, tokenHash)
	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link by token hash: %w", err)
	}
	return l, nil
}

func (s *LinkStore) ListForPerson(ctx context.Context, personID int64) ([]model.SubmissionLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkCols+` FROM submission_links WHERE person_id = ? ORDER BY id ASC`, personID,
	)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []model.SubmissionLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}
