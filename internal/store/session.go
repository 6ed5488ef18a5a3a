package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

type SessionStore struct {
	db DBTX
}

func NewSessionStore(db DBTX) *SessionStore {
	return &SessionStore{db: db}
}

const sessionCols = `id, submission_id, email, session_token_hash, expires_at, revoked_at, created_at`

func scanSession(row scanner) (*model.SubmissionSession, error) {
	var s model.SubmissionSession
	var revokedAt sql.NullTime
	err := row.Scan(&s.ID, &s.SubmissionID, &s.Email, &s.SessionTokenHash, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.RevokedAt = nullTimePtr(revokedAt)
	return &s, nil
}

func (s *SessionStore) Create(ctx context.Context, submissionID int64, email, tokenHash string, expiresAt, now time.Time) (*model.SubmissionSession, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_sessions (submission_id, email, session_token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		submissionID, email, tokenHash, expiresAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM submission_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetActive returns the session with tokenHash if it belongs to submissionID,
// is not revoked and has not expired at now. Otherwise it returns nil.
func (s *SessionStore) GetActive(ctx context.Context, tokenHash string, submissionID int64, now time.Time) (*model.SubmissionSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM submission_sessions WHERE session_token_hash = ? AND submission_id = ?`,
		tokenHash, submissionID,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.RevokedAt != nil || !now.Before(sess.ExpiresAt) {
		return nil, nil
	}
	return sess, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submission_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, now, id,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before cutoff.
func (s *SessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM submission_sessions WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
