package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

type SubmissionStore struct {
	db DBTX
}

func NewSubmissionStore(db DBTX) *SubmissionStore {
	return &SubmissionStore{db: db}
}

const submissionCols = `id, link_id, person_id, email, status, last_link_recipient_email, last_link_event_at,
	last_link_event_type, last_link_event_by_person_id, submitted_at, closed_at, created_at, updated_at`

func scanSubmission(row scanner, extra ...any) (*model.Submission, error) {
	var sub model.Submission
	var email, recipient, eventType sql.NullString
	var eventAt, submittedAt, closedAt sql.NullTime
	var eventBy sql.NullInt64

	dest := []any{
		&sub.ID, &sub.LinkID, &sub.PersonID, &email, &sub.Status, &recipient, &eventAt,
		&eventType, &eventBy, &submittedAt, &closedAt, &sub.CreatedAt, &sub.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	sub.Email = nullStringPtr(email)
	sub.LastLinkRecipientEmail = nullStringPtr(recipient)
	sub.LastLinkEventAt = nullTimePtr(eventAt)
	if eventType.Valid {
		t := model.LinkEventType(eventType.String)
		sub.LastLinkEventType = &t
	}
	sub.LastLinkEventByPersonID = nullInt64Ptr(eventBy)
	sub.SubmittedAt = nullTimePtr(submittedAt)
	sub.ClosedAt = nullTimePtr(closedAt)
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

func (s *SubmissionStore) getOne(ctx context.Context, what, where string, args ...any) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE `+where, args...)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return sub, nil
}

// Create inserts a DRAFT submission for linkID.
func (s *SubmissionStore) Create(ctx context.Context, linkID, personID int64, now time.Time) (*model.Submission, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (link_id, person_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		linkID, personID, model.SubmissionStatusDraft, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// EnsureForLink returns the submission for linkID, creating it if missing.
// The UNIQUE constraint on link_id makes concurrent callers converge on one row.
func (s *SubmissionStore) EnsureForLink(ctx context.Context, link *model.SubmissionLink, now time.Time) (*model.Submission, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (link_id, person_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(link_id) DO NOTHING`,
		link.ID, link.PersonID, model.SubmissionStatusDraft, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure submission: %w", err)
	}
	sub, err := s.GetByLinkID(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("ensure submission: row for link %d missing after insert", link.ID)
	}
	return sub, nil
}

func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	return s.getOne(ctx, "get submission", `id = ?`, id)
}

func (s *SubmissionStore) GetByLinkID(ctx context.Context, linkID int64) (*model.Submission, error) {
	return s.getOne(ctx, "get submission by link", `link_id = ?`, linkID)
}

// GetForPerson returns the submission only when it belongs to personID.
func (s *SubmissionStore) GetForPerson(ctx context.Context, personID, id int64) (*model.Submission, error) {
	return s.getOne(ctx, "get submission for person", `id = ? AND person_id = ?`, id, personID)
}

// LatestLinkEventAt returns the most recent link event time across every
// submission the person has ever had, or nil if none recorded one.
func (s *SubmissionStore) LatestLinkEventAt(ctx context.Context, personID int64) (*time.Time, error) {
	var at sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT last_link_event_at FROM submissions
		 WHERE person_id = ? AND last_link_event_at IS NOT NULL
		 ORDER BY last_link_event_at DESC LIMIT 1`,
		personID,
	).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest link event: %w", err)
	}
	return nullTimePtr(at), nil
}

func (s *SubmissionStore) UpdateLastLinkEvent(ctx context.Context, id int64, event model.LinkEventType, recipient *string, byPersonID *int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET last_link_event_type = ?, last_link_event_at = ?, last_link_recipient_email = ?,
		 last_link_event_by_person_id = ?, updated_at = ? WHERE id = ?`,
		string(event), now, stringArg(recipient), int64Arg(byPersonID), now, id,
	)
	if err != nil {
		return fmt.Errorf("update last link event: %w", err)
	}
	return nil
}

func (s *SubmissionStore) UpdateEmail(ctx context.Context, id int64, email string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET email = ?, updated_at = ? WHERE id = ?`,
		email, now, id,
	)
	if err != nil {
		return fmt.Errorf("update submission email: %w", err)
	}
	return nil
}

// MarkSubmitted moves a non-closed submission to SUBMITTED. The first
// submitted_at is kept on repeat calls. Closed submissions are untouched.
func (s *SubmissionStore) MarkSubmitted(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, submitted_at = COALESCE(submitted_at, ?), updated_at = ?
		 WHERE id = ? AND status != ?`,
		model.SubmissionStatusSubmitted, now, now, id, model.SubmissionStatusClosed,
	)
	if err != nil {
		return fmt.Errorf("mark submission submitted: %w", err)
	}
	return nil
}

// MarkClosed closes the submission and reports whether this call did it.
func (s *SubmissionStore) MarkClosed(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, closed_at = ?, updated_at = ? WHERE id = ? AND status != ?`,
		model.SubmissionStatusClosed, now, now, id, model.SubmissionStatusClosed,
	)
	if err != nil {
		return false, fmt.Errorf("mark submission closed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SearchForPerson lists a person's submissions, newest first, optionally
// filtered by status.
func (s *SubmissionStore) SearchForPerson(ctx context.Context, personID int64, status *model.SubmissionStatus) ([]model.SubmissionSummary, error) {
	query := `SELECT ` + submissionCols + `,
		(SELECT COUNT(*) FROM submission_items i WHERE i.submission_id = submissions.id AND i.item_status = 'PENDING'),
		(SELECT COUNT(*) FROM submission_items i WHERE i.submission_id = submissions.id AND i.item_status = 'ACCEPTED'),
		(SELECT COUNT(*) FROM submission_items i WHERE i.submission_id = submissions.id AND i.item_status = 'REJECTED')
		FROM submissions WHERE person_id = ?`
	args := []any{personID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search submissions: %w", err)
	}
	defer rows.Close()

	var out []model.SubmissionSummary
	for rows.Next() {
		var sum model.SubmissionSummary
		sub, err := scanSubmission(rows, &sum.PendingItems, &sum.AcceptedItems, &sum.RejectedItems)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sum.Submission = *sub
		out = append(out, sum)
	}
	return out, rows.Err()
}
