package submission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/model"
)

// MaxUploadBytes bounds files accepted for analysis.
const MaxUploadBytes = 10 << 20

func (e *Engine) GetDraft(ctx context.Context, tok, sessionToken string) (*model.Draft, error) {
	var draft *model.Draft
	err := e.inTx(ctx, func(s *stores) error {
		sub, err := e.authorize(ctx, s, tok, sessionToken, e.now())
		if err != nil {
			return err
		}
		draft, err = loadDraft(ctx, s, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// UpdateDraft replaces the PENDING items of every type present in payload.
// Types left nil are not touched.
func (e *Engine) UpdateDraft(ctx context.Context, tok, sessionToken string, payload model.DraftPayload) (*model.Draft, error) {
	groups, err := encodeDraft(payload)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var draft *model.Draft
	err = e.inTx(ctx, func(s *stores) error {
		sub, err := e.authorize(ctx, s, tok, sessionToken, now)
		if err != nil {
			return err
		}
		if sub.Status == model.SubmissionStatusClosed {
			return apperr.ErrSubmissionAlreadyClosed
		}
		for _, g := range groups {
			if err := s.items.DeletePendingByType(ctx, sub.ID, g.itemType); err != nil {
				return err
			}
			for _, raw := range g.payloads {
				if _, err := s.items.InsertPending(ctx, sub.ID, g.itemType, raw, now); err != nil {
					return err
				}
			}
		}
		draft, err = loadDraft(ctx, s, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

type itemGroup struct {
	itemType model.ItemType
	payloads []json.RawMessage
}

// encodeDraft validates every present item and marshals it for storage.
func encodeDraft(p model.DraftPayload) ([]itemGroup, error) {
	var groups []itemGroup
	add := func(t model.ItemType, items []model.ItemPayload) error {
		g := itemGroup{itemType: t, payloads: make([]json.RawMessage, 0, len(items))}
		for i, it := range items {
			if err := it.Validate(); err != nil {
				return apperr.Validation(apperr.CodeInvalidItemPayload, fmt.Sprintf("%s %d: %v", t, i+1, err))
			}
			raw, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", t, err)
			}
			g.payloads = append(g.payloads, raw)
		}
		groups = append(groups, g)
		return nil
	}

	if p.Experiences != nil {
		items := make([]model.ItemPayload, len(p.Experiences))
		for i, v := range p.Experiences {
			items[i] = v
		}
		if err := add(model.ItemTypeExperience, items); err != nil {
			return nil, err
		}
	}
	if p.Educations != nil {
		items := make([]model.ItemPayload, len(p.Educations))
		for i, v := range p.Educations {
			items[i] = v
		}
		if err := add(model.ItemTypeEducation, items); err != nil {
			return nil, err
		}
	}
	if p.Skills != nil {
		items := make([]model.ItemPayload, len(p.Skills))
		for i, v := range p.Skills {
			items[i] = v
		}
		if err := add(model.ItemTypeSkill, items); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func loadDraft(ctx context.Context, s *stores, sub *model.Submission) (*model.Draft, error) {
	pending, err := s.items.ListByStatus(ctx, sub.ID, model.ItemStatusPending)
	if err != nil {
		return nil, err
	}
	draft := &model.Draft{
		Submission:  sub,
		Experiences: []model.SubmissionItem{},
		Educations:  []model.SubmissionItem{},
		Skills:      []model.SubmissionItem{},
	}
	for _, it := range pending {
		switch it.ItemType {
		case model.ItemTypeExperience:
			draft.Experiences = append(draft.Experiences, it)
		case model.ItemTypeEducation:
			draft.Educations = append(draft.Educations, it)
		case model.ItemTypeSkill:
			draft.Skills = append(draft.Skills, it)
		}
	}
	return draft, nil
}

// Submit marks the submission SUBMITTED. A closed submission is returned
// unchanged.
func (e *Engine) Submit(ctx context.Context, tok, sessionToken string) (*model.Submission, error) {
	now := e.now()
	var sub *model.Submission
	err := e.inTx(ctx, func(s *stores) error {
		current, err := e.authorize(ctx, s, tok, sessionToken, now)
		if err != nil {
			return err
		}
		if err := s.submissions.MarkSubmitted(ctx, current.ID, now); err != nil {
			return err
		}
		sub, err = s.submissions.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sub.Status == model.SubmissionStatusSubmitted {
		e.publish("submission", "submitted", sub.ID, map[string]any{"personId": sub.PersonID})
	}
	return sub, nil
}

// Upload is a file handed in for analysis.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AnalyzeFile asks the extractor for draft suggestions. Nothing is stored.
func (e *Engine) AnalyzeFile(ctx context.Context, tok, sessionToken string, file Upload) (*model.DraftPayload, error) {
	err := e.inTx(ctx, func(s *stores) error {
		_, err := e.authorize(ctx, s, tok, sessionToken, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(file.Data) == 0 {
		return nil, apperr.Validation(apperr.CodeInvalidFile, "file is empty")
	}
	if len(file.Data) > MaxUploadBytes {
		return nil, apperr.Validation(apperr.CodeInvalidFile, "file is too large")
	}
	if e.extractor == nil {
		return nil, apperr.Unavailable(apperr.CodeExtractionUnavailable, "document analysis is not configured")
	}
	suggestions, err := e.extractor.Extract(ctx, file.Filename, file.ContentType, file.Data)
	if err != nil {
		return nil, fmt.Errorf("extract draft: %w", err)
	}
	return suggestions, nil
}
