package submission

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/token"
)

type LinkRequest struct {
	RecipientEmail *string `json:"recipientEmail,omitempty"`
	SendNow        bool    `json:"sendNow,omitempty"`
}

type Dispatch struct {
	RecipientEmail   *string             `json:"recipientEmail"`
	Status           model.LinkEventType `json:"status"`
	SendNowRequested bool                `json:"sendNowRequested"`
}

type LinkResult struct {
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expiresAt"`
	SubmissionID int64     `json:"submissionId"`
	Dispatch     Dispatch  `json:"dispatch"`
}

// CreateOrRefreshLink issues a new link for the person, revoking any active
// one. The plaintext token is only ever returned here.
func (e *Engine) CreateOrRefreshLink(ctx context.Context, personID, requestedBy int64, req LinkRequest) (*LinkResult, error) {
	var explicit *string
	if req.RecipientEmail != nil && strings.TrimSpace(*req.RecipientEmail) != "" {
		addr, err := normalizeEmail(*req.RecipientEmail)
		if err != nil {
			return nil, err
		}
		explicit = &addr
	}

	plaintext, err := token.NewToken(token.DefaultByteLength)
	if err != nil {
		return nil, err
	}
	now := e.now()
	expiresAt := now.Add(e.cfg.LinkTTL)

	var (
		recipient *string
		sub       *model.Submission
	)
	err = e.inTx(ctx, func(s *stores) error {
		recipient = explicit
		if recipient == nil {
			def, err := s.people.GetDefaultEmail(ctx, personID)
			if err != nil {
				return err
			}
			recipient = def
		}
		if req.SendNow && recipient == nil {
			return apperr.Validation(apperr.CodeRecipientEmailRequired, "no recipient email given and none on file")
		}

		last, err := s.submissions.LatestLinkEventAt(ctx, personID)
		if err != nil {
			return err
		}
		if last != nil {
			if wait := last.Add(e.cfg.LinkRecoveryCooldown).Sub(now); wait > 0 {
				return apperr.RateLimited(apperr.CodeLinkRecoveryRateLimited,
					"a link was issued for this person moments ago", wait)
			}
		}

		if _, err := s.links.RevokeActiveLinksForPerson(ctx, personID, now); err != nil {
			return err
		}
		link, err := s.links.Create(ctx, personID, token.Hash(plaintext), expiresAt, &requestedBy, now)
		if err != nil {
			return err
		}
		sub, err = s.submissions.Create(ctx, link.ID, personID, now)
		if err != nil {
			return err
		}
		return s.submissions.UpdateLastLinkEvent(ctx, sub.ID, model.LinkEventGenerated, recipient, &requestedBy, now)
	})
	if err != nil {
		return nil, err
	}

	result := &LinkResult{
		Token:        plaintext,
		URL:          e.publicURL(plaintext),
		ExpiresAt:    expiresAt,
		SubmissionID: sub.ID,
		Dispatch: Dispatch{
			RecipientEmail:   recipient,
			Status:           model.LinkEventGenerated,
			SendNowRequested: req.SendNow,
		},
	}
	e.publish("submission_link", "issued", sub.ID, map[string]any{"personId": personID})

	if req.SendNow {
		result.Dispatch.Status = e.dispatchLink(ctx, sub.ID, *recipient, result.URL, expiresAt, requestedBy)
	}
	return result, nil
}

// dispatchLink mails the link and records the outcome. Delivery and
// recording failures are logged, never returned.
func (e *Engine) dispatchLink(ctx context.Context, submissionID int64, to, url string, expiresAt time.Time, by int64) model.LinkEventType {
	status := model.LinkEventSent
	if err := e.mailer.SendSubmissionLink(ctx, to, url, expiresAt); err != nil {
		e.logger.Error("send submission link", "submission_id", submissionID, "error", err)
		status = model.LinkEventSendFailed
	}
	err := e.inTx(ctx, func(s *stores) error {
		return s.submissions.UpdateLastLinkEvent(ctx, submissionID, status, &to, &by, e.now())
	})
	if err != nil {
		e.logger.Error("record link dispatch", "submission_id", submissionID, "status", status, "error", err)
	}
	return status
}

func (e *Engine) publicURL(tok string) string {
	tmpl := e.cfg.PublicURLTemplate
	if strings.Contains(tmpl, "{token}") {
		return strings.ReplaceAll(tmpl, "{token}", tok)
	}
	return tmpl + tok
}

// normalizeEmail trims and lowercases addr and rejects anything that is not a
// bare address.
func normalizeEmail(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || !strings.Contains(addr[strings.LastIndex(addr, "@")+1:], ".") {
		return "", apperr.Validation(apperr.CodeInvalidEmail, "email address is invalid")
	}
	return addr, nil
}

// resolve maps a link token to its submission, creating the submission on
// first use.
func (e *Engine) resolve(ctx context.Context, s *stores, tok string, now time.Time) (*model.SubmissionLink, *model.Submission, error) {
	if tok == "" {
		return nil, nil, apperr.ErrLinkNotFound
	}
	link, err := s.links.GetByTokenHash(ctx, token.Hash(tok))
	if err != nil {
		return nil, nil, err
	}
	if link == nil {
		return nil, nil, apperr.ErrLinkNotFound
	}
	if link.RevokedAt != nil {
		return nil, nil, apperr.Gone(apperr.CodeLinkRevoked, "submission link has been replaced")
	}
	if !now.Before(link.ExpiresAt) {
		return nil, nil, apperr.Gone(apperr.CodeLinkExpired, "submission link has expired")
	}
	sub, err := s.submissions.EnsureForLink(ctx, link, now)
	if err != nil {
		return nil, nil, err
	}
	return link, sub, nil
}
