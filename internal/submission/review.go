package submission

import (
	"context"
	"time"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/store"
)

type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionReject Decision = "REJECT"
)

// ParseDecision validates a review decision.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionAccept, DecisionReject:
		return d, nil
	}
	return "", apperr.Validation(apperr.CodeInvalidDecision, "decision must be ACCEPT or REJECT")
}

// SearchSubmissions lists the person's submissions. An empty status means all.
func (e *Engine) SearchSubmissions(ctx context.Context, personID int64, status string) ([]model.SubmissionSummary, error) {
	var filter *model.SubmissionStatus
	if status != "" {
		st, ok := model.ParseSubmissionStatus(status)
		if !ok {
			return nil, apperr.Validation(apperr.CodeInvalidStatus, "unknown submission status "+status)
		}
		filter = &st
	}
	subs, err := store.NewSubmissionStore(e.db).SearchForPerson(ctx, personID, filter)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.SubmissionSummary{}
	}
	return subs, nil
}

type SubmissionDetails struct {
	Submission *model.Submission      `json:"submission"`
	Items      []model.SubmissionItem `json:"items"`
}

func (e *Engine) GetSubmissionDetails(ctx context.Context, personID, submissionID int64) (*SubmissionDetails, error) {
	var out *SubmissionDetails
	err := e.inTx(ctx, func(s *stores) error {
		sub, err := s.submissions.GetForPerson(ctx, personID, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.ErrSubmissionNotFound
		}
		items, err := s.items.List(ctx, sub.ID)
		if err != nil {
			return err
		}
		out = &SubmissionDetails{Submission: sub, Items: nonNilItems(items)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type ReviewResult struct {
	SubmissionID     int64    `json:"submissionId"`
	ItemID           int64    `json:"itemId"`
	Decision         Decision `json:"decision"`
	AcceptedTargetID *int64   `json:"acceptedTargetId,omitempty"`
	AutoClosed       bool     `json:"autoClosed"`
}

// ReviewItem resolves one PENDING item and closes the submission when it was
// the last one pending.
func (e *Engine) ReviewItem(ctx context.Context, personID, submissionID, itemID int64, decision Decision, reviewerID int64) (*ReviewResult, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	now := e.now()
	result := &ReviewResult{SubmissionID: submissionID, ItemID: itemID, Decision: decision}
	err := e.inTx(ctx, func(s *stores) error {
		sub, err := s.submissions.GetForPerson(ctx, personID, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.ErrSubmissionNotFound
		}
		item, err := s.items.Get(ctx, sub.ID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return apperr.ErrItemNotFound
		}
		if item.ItemStatus != model.ItemStatusPending {
			return apperr.ErrItemAlreadyResolved
		}

		var marked bool
		switch decision {
		case DecisionAccept:
			targetID, err := e.importItem(ctx, s, sub.PersonID, item, now)
			if err != nil {
				return err
			}
			marked, err = s.items.MarkAccepted(ctx, item.ID, targetID, reviewerID, now)
			if err != nil {
				return err
			}
			result.AcceptedTargetID = &targetID
		case DecisionReject:
			marked, err = s.items.MarkRejected(ctx, item.ID, reviewerID, now)
			if err != nil {
				return err
			}
		}
		if !marked {
			return apperr.ErrItemAlreadyResolved
		}

		pending, err := s.items.CountPending(ctx, sub.ID)
		if err != nil {
			return err
		}
		if pending == 0 {
			result.AutoClosed, err = s.submissions.MarkClosed(ctx, sub.ID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish("submission_item", "reviewed", itemID, map[string]any{
		"submissionId": submissionID,
		"decision":     string(decision),
	})
	if result.AutoClosed {
		e.publish("submission", "closed", submissionID, map[string]any{"personId": personID})
	}
	return result, nil
}

func (e *Engine) importItem(ctx context.Context, s *stores, personID int64, item *model.SubmissionItem, now time.Time) (int64, error) {
	payload, err := model.DecodePayload(item.ItemType, item.Payload)
	if err != nil {
		return 0, err
	}
	return e.importer.Import(ctx, s.tx, personID, item.ID, payload, now)
}

type CloseResult struct {
	SubmissionID int64 `json:"submissionId"`
	Closed       bool  `json:"closed"`
}

// CloseSubmission closes a submission that has nothing left to review.
func (e *Engine) CloseSubmission(ctx context.Context, personID, submissionID int64) (*CloseResult, error) {
	now := e.now()
	var changed bool
	err := e.inTx(ctx, func(s *stores) error {
		sub, err := s.submissions.GetForPerson(ctx, personID, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.ErrSubmissionNotFound
		}
		pending, err := s.items.CountPending(ctx, sub.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return apperr.ErrSubmissionHasPendingItems
		}
		changed, err = s.submissions.MarkClosed(ctx, sub.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.publish("submission", "closed", submissionID, map[string]any{"personId": personID})
	}
	return &CloseResult{SubmissionID: submissionID, Closed: true}, nil
}
