package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

type ItemStore struct {
	db DBTX
}

func NewItemStore(db DBTX) *ItemStore {
	return &ItemStore{db: db}
}

const itemCols = `id, submission_id, item_type, item_status, payload, accepted_target_id, reviewed_by_person_id,
	reviewed_at, created_at, updated_at`

func scanItem(row scanner) (*model.SubmissionItem, error) {
	var it model.SubmissionItem
	var payload sql.NullString
	var targetID, reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime
	err := row.Scan(&it.ID, &it.SubmissionID, &it.ItemType, &it.ItemStatus, &payload, &targetID, &reviewedBy,
		&reviewedAt, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		it.Payload = json.RawMessage(payload.String)
	}
	it.AcceptedTargetID = nullInt64Ptr(targetID)
	it.ReviewedByPersonID = nullInt64Ptr(reviewedBy)
	it.ReviewedAt = nullTimePtr(reviewedAt)
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return &it, nil
}

func (s *ItemStore) query(ctx context.Context, where string, args ...any) ([]model.SubmissionItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM submission_items WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.SubmissionItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// List returns every item of the submission in insertion order.
func (s *ItemStore) List(ctx context.Context, submissionID int64) ([]model.SubmissionItem, error) {
	return s.query(ctx, `submission_id = ?`, submissionID)
}

func (s *ItemStore) ListByStatus(ctx context.Context, submissionID int64, status model.ItemStatus) ([]model.SubmissionItem, error) {
	return s.query(ctx, `submission_id = ? AND item_status = ?`, submissionID, string(status))
}

// Get returns the item only when it belongs to submissionID.
func (s *ItemStore) Get(ctx context.Context, submissionID, itemID int64) (*model.SubmissionItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemCols+` FROM submission_items WHERE id = ? AND submission_id = ?`, itemID, submissionID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// InsertPending stores a new PENDING item with the given JSON payload.
func (s *ItemStore) InsertPending(ctx context.Context, submissionID int64, itemType model.ItemType, payload json.RawMessage, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_items (submission_id, item_type, item_status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		submissionID, string(itemType), model.ItemStatusPending, string(payload), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	return result.LastInsertId()
}

// DeletePendingByType drops the submission's PENDING items of one type.
// Reviewed items are never touched.
func (s *ItemStore) DeletePendingByType(ctx context.Context, submissionID int64, itemType model.ItemType) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM submission_items WHERE submission_id = ? AND item_type = ? AND item_status = ?`,
		submissionID, string(itemType), model.ItemStatusPending,
	)
	if err != nil {
		return fmt.Errorf("delete pending items: %w", err)
	}
	return nil
}

// MarkAccepted resolves a PENDING item as ACCEPTED. It reports false if the
// item was no longer pending.
func (s *ItemStore) MarkAccepted(ctx context.Context, itemID, targetID, reviewerID int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submission_items SET item_status = ?, accepted_target_id = ?, reviewed_by_person_id = ?,
		 reviewed_at = ?, updated_at = ? WHERE id = ? AND item_status = ?`,
		model.ItemStatusAccepted, targetID, reviewerID, now, now, itemID, model.ItemStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark item accepted: %w", err)
	}
	return affected(result)
}

// MarkRejected resolves a PENDING item as REJECTED and discards its payload.
func (s *ItemStore) MarkRejected(ctx context.Context, itemID, reviewerID int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submission_items SET item_status = ?, payload = NULL, reviewed_by_person_id = ?,
		 reviewed_at = ?, updated_at = ? WHERE id = ? AND item_status = ?`,
		model.ItemStatusRejected, reviewerID, now, now, itemID, model.ItemStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark item rejected: %w", err)
	}
	return affected(result)
}

func (s *ItemStore) CountPending(ctx context.Context, submissionID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submission_items WHERE submission_id = ? AND item_status = ?`,
		submissionID, model.ItemStatusPending,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending items: %w", err)
	}
	return n, nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
