package submission

import (
	"context"
	"time"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/token"
)

// PublicSubmission is what an anonymous holder of the link token may see.
type PublicSubmission struct {
	SubmissionID  int64                  `json:"submissionId"`
	Status        model.SubmissionStatus `json:"status"`
	SubmittedAt   *time.Time             `json:"submittedAt,omitempty"`
	ClosedAt      *time.Time             `json:"closedAt,omitempty"`
	LinkExpiresAt time.Time              `json:"linkExpiresAt"`
	EmailRecorded bool                   `json:"emailRecorded"`
	Items         []model.SubmissionItem `json:"items"`
}

func (e *Engine) GetPublicSubmission(ctx context.Context, tok string) (*PublicSubmission, error) {
	var out *PublicSubmission
	err := e.inTx(ctx, func(s *stores) error {
		link, sub, err := e.resolve(ctx, s, tok, e.now())
		if err != nil {
			return err
		}
		items, err := s.items.List(ctx, sub.ID)
		if err != nil {
			return err
		}
		out = &PublicSubmission{
			SubmissionID:  sub.ID,
			Status:        sub.Status,
			SubmittedAt:   sub.SubmittedAt,
			ClosedAt:      sub.ClosedAt,
			LinkExpiresAt: link.ExpiresAt,
			EmailRecorded: sub.Email != nil,
			Items:         nonNilItems(items),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type VerifyRequestResult struct {
	SubmissionID  int64     `json:"submissionId"`
	Email         string    `json:"email"`
	CodeExpiresAt time.Time `json:"codeExpiresAt"`
}

// RequestVerifyCode issues a fresh one-time code for (submission, email) and
// mails it once the challenge is committed.
func (e *Engine) RequestVerifyCode(ctx context.Context, tok, email string) (*VerifyRequestResult, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	code, err := token.NewNumericCode()
	if err != nil {
		return nil, err
	}
	codeHash, err := token.HashCode(code)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var challenge *challengeRef
	err = e.inTx(ctx, func(s *stores) error {
		_, sub, err := e.resolve(ctx, s, tok, now)
		if err != nil {
			return err
		}
		if err := s.submissions.UpdateEmail(ctx, sub.ID, addr, now); err != nil {
			return err
		}
		if err := s.challenges.ConsumeActive(ctx, sub.ID, addr, now); err != nil {
			return err
		}
		c, err := s.challenges.Create(ctx, sub.ID, addr, codeHash, now.Add(e.cfg.VerifyCodeTTL), e.cfg.MaxVerifyAttempts, now)
		if err != nil {
			return err
		}
		challenge = &challengeRef{submissionID: sub.ID, expiresAt: c.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.mailer.SendVerifyCode(ctx, addr, code, challenge.expiresAt); err != nil {
		return nil, err
	}
	return &VerifyRequestResult{
		SubmissionID:  challenge.submissionID,
		Email:         addr,
		CodeExpiresAt: challenge.expiresAt,
	}, nil
}

type challengeRef struct {
	submissionID int64
	expiresAt    time.Time
}

type VerifyConfirmResult struct {
	SubmissionID       int64     `json:"submissionId"`
	PublicSessionToken string    `json:"publicSessionToken"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// rateLimitedVerify hints the remaining challenge lifetime, never less than
// a second.
func rateLimitedVerify(c *model.VerifyChallenge, now time.Time) *apperr.Error {
	retry := c.ExpiresAt.Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return apperr.RateLimited(apperr.CodeEmailVerifyRateLimited, "too many verification attempts, request a new code", retry)
}

// ConfirmVerifyCode checks code against the latest challenge and opens a
// session on success. The effects of a failed attempt are committed before
// its error is returned.
func (e *Engine) ConfirmVerifyCode(ctx context.Context, tok, email, code string) (*VerifyConfirmResult, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	sessionToken, err := token.NewToken(token.DefaultByteLength)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var (
		failure error
		result  *VerifyConfirmResult
	)
	err = e.inTx(ctx, func(s *stores) error {
		_, sub, err := e.resolve(ctx, s, tok, now)
		if err != nil {
			return err
		}
		c, err := s.challenges.GetLatest(ctx, sub.ID, addr)
		if err != nil {
			return err
		}
		if c == nil {
			failure = apperr.ErrEmailVerifyRequired
			return nil
		}
		if c.ConsumedAt != nil {
			if c.AttemptsLeft <= 0 {
				failure = rateLimitedVerify(c, now)
			} else {
				failure = apperr.ErrEmailVerifyRequired
			}
			return nil
		}
		if !now.Before(c.ExpiresAt) {
			failure = apperr.Gone(apperr.CodeEmailCodeExpired, "verification code has expired")
			return s.challenges.Consume(ctx, c.ID, now)
		}
		if c.AttemptsLeft <= 0 {
			failure = rateLimitedVerify(c, now)
			return s.challenges.Consume(ctx, c.ID, now)
		}

		if !token.CompareCode(c.CodeHash, code) {
			left, ok, err := s.challenges.DecrementAttempts(ctx, c.ID)
			if err != nil {
				return err
			}
			if !ok || left <= 0 {
				failure = rateLimitedVerify(c, now)
				return s.challenges.Consume(ctx, c.ID, now)
			}
			failure = apperr.Validation(apperr.CodeEmailCodeInvalid, "verification code is incorrect")
			return nil
		}

		if err := s.challenges.Consume(ctx, c.ID, now); err != nil {
			return err
		}
		if err := s.submissions.UpdateEmail(ctx, sub.ID, addr, now); err != nil {
			return err
		}
		sess, err := s.sessions.Create(ctx, sub.ID, addr, token.Hash(sessionToken), now.Add(e.cfg.SessionTTL), now)
		if err != nil {
			return err
		}
		result = &VerifyConfirmResult{
			SubmissionID:       sub.ID,
			PublicSessionToken: sessionToken,
			ExpiresAt:          sess.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return result, nil
}

// authorize resolves the link and requires an active session bound to its
// submission.
func (e *Engine) authorize(ctx context.Context, s *stores, tok, sessionToken string, now time.Time) (*model.Submission, error) {
	_, sub, err := e.resolve(ctx, s, tok, now)
	if err != nil {
		return nil, err
	}
	if sessionToken == "" {
		return nil, apperr.ErrEmailVerifyRequired
	}
	sess, err := s.sessions.GetActive(ctx, token.Hash(sessionToken), sub.ID, now)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.ErrEmailVerifyRequired
	}
	return sub, nil
}

func nonNilItems(items []model.SubmissionItem) []model.SubmissionItem {
	if items == nil {
		return []model.SubmissionItem{}
	}
	return items
}
