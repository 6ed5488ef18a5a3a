package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

type ChallengeStore struct {
	db DBTX
}

func NewChallengeStore(db DBTX) *ChallengeStore {
	return &ChallengeStore{db: db}
}

const challengeCols = `id, submission_id, email, code_hash, expires_at, attempts_left, consumed_at, created_at`

func scanChallenge(row scanner) (*model.VerifyChallenge, error) {
	var c model.VerifyChallenge
	var consumedAt sql.NullTime
	err := row.Scan(&c.ID, &c.SubmissionID, &c.Email, &c.CodeHash, &c.ExpiresAt, &c.AttemptsLeft, &consumedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = c.ExpiresAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.ConsumedAt = nullTimePtr(consumedAt)
	return &c, nil
}

// ConsumeActive marks every unconsumed challenge for the pair as consumed.
func (s *ChallengeStore) ConsumeActive(ctx context.Context, submissionID int64, email string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submission_verify_challenges SET consumed_at = ?
		 WHERE submission_id = ? AND email = ? AND consumed_at IS NULL`,
		now, submissionID, email,
	)
	if err != nil {
		return fmt.Errorf("consume active challenges: %w", err)
	}
	return nil
}

func (s *ChallengeStore) Create(ctx context.Context, submissionID int64, email, codeHash string, expiresAt time.Time, attempts int, now time.Time) (*model.VerifyChallenge, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_verify_challenges (submission_id, email, code_hash, expires_at, attempts_left, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		submissionID, email, codeHash, expiresAt, attempts, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+challengeCols+` FROM submission_verify_challenges WHERE id = ?`, id)
	return scanChallenge(row)
}

// GetLatest returns the most recently issued challenge for the pair, consumed
// or not.
func (s *ChallengeStore) GetLatest(ctx context.Context, submissionID int64, email string) (*model.VerifyChallenge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+challengeCols+` FROM submission_verify_challenges
		 WHERE submission_id = ? AND email = ? ORDER BY id DESC LIMIT 1`,
		submissionID, email,
	)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeStore) Consume(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submission_verify_challenges SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

// DecrementAttempts spends one attempt and returns what is left. ok is false
// when the challenge was already consumed or had no attempts remaining.
func (s *ChallengeStore) DecrementAttempts(ctx context.Context, id int64) (left int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`UPDATE submission_verify_challenges SET attempts_left = attempts_left - 1
		 WHERE id = ? AND consumed_at IS NULL AND attempts_left > 0
		 RETURNING attempts_left`,
		id,
	).Scan(&left)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("decrement attempts: %w", err)
	}
	return left, true, nil
}

// DeleteExpired removes challenges that expired before cutoff.
func (s *ChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM submission_verify_challenges WHERE expires_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return result.RowsAffected()
}
