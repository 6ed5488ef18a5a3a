package model

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "DRAFT"
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusClosed    SubmissionStatus = "CLOSED"
	SubmissionStatusExpired   SubmissionStatus = "EXPIRED"
)

// ParseSubmissionStatus reports whether s names a known status.
func ParseSubmissionStatus(s string) (SubmissionStatus, bool) {
	switch st := SubmissionStatus(s); st {
	case SubmissionStatusDraft, SubmissionStatusSubmitted, SubmissionStatusClosed, SubmissionStatusExpired:
		return st, true
	}
	return "", false
}

type LinkEventType string

const (
	LinkEventGenerated  LinkEventType = "LINK_GENERATED"
	LinkEventSent       LinkEventType = "LINK_SENT"
	LinkEventSendFailed LinkEventType = "LINK_SEND_FAILED"
)

type SubmissionLink struct {
	ID                int64      `json:"id"`
	PersonID          int64      `json:"personId"`
	TokenHash         string     `json:"-"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	RevokedAt         *time.Time `json:"revokedAt,omitempty"`
	CreatedByPersonID *int64     `json:"createdByPersonId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Active reports whether the link is neither revoked nor expired at now.
func (l *SubmissionLink) Active(now time.Time) bool {
	return l.RevokedAt == nil && now.Before(l.ExpiresAt)
}

type Submission struct {
	ID                      int64            `json:"id"`
	LinkID                  int64            `json:"linkId"`
	PersonID                int64            `json:"personId"`
	Email                   *string          `json:"email,omitempty"`
	Status                  SubmissionStatus `json:"status"`
	LastLinkRecipientEmail  *string          `json:"lastLinkRecipientEmail,omitempty"`
	LastLinkEventAt         *time.Time       `json:"lastLinkEventAt,omitempty"`
	LastLinkEventType       *LinkEventType   `json:"lastLinkEventType,omitempty"`
	LastLinkEventByPersonID *int64           `json:"lastLinkEventByPersonId,omitempty"`
	SubmittedAt             *time.Time       `json:"submittedAt,omitempty"`
	ClosedAt                *time.Time       `json:"closedAt,omitempty"`
	CreatedAt               time.Time        `json:"createdAt"`
	UpdatedAt               time.Time        `json:"updatedAt"`
}

// SubmissionSummary is a submission with item counts, used by staff search.
type SubmissionSummary struct {
	Submission
	PendingItems  int `json:"pendingItems"`
	AcceptedItems int `json:"acceptedItems"`
	RejectedItems int `json:"rejectedItems"`
}

type VerifyChallenge struct {
	ID           int64      `json:"id"`
	SubmissionID int64      `json:"submissionId"`
	Email        string     `json:"email"`
	CodeHash     string     `json:"-"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	AttemptsLeft int        `json:"attemptsLeft"`
	ConsumedAt   *time.Time `json:"consumedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type SubmissionSession struct {
	ID               int64      `json:"id"`
	SubmissionID     int64      `json:"submissionId"`
	Email            string     `json:"email"`
	SessionTokenHash string     `json:"-"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "PENDING"
	ItemStatusAccepted ItemStatus = "ACCEPTED"
	ItemStatusRejected ItemStatus = "REJECTED"
)

type SubmissionItem struct {
	ID                 int64           `json:"id"`
	SubmissionID       int64           `json:"submissionId"`
	ItemType           ItemType        `json:"itemType"`
	ItemStatus         ItemStatus      `json:"itemStatus"`
	Payload            json.RawMessage `json:"payload"`
	AcceptedTargetID   *int64          `json:"acceptedTargetId,omitempty"`
	ReviewedByPersonID *int64          `json:"reviewedByPersonId,omitempty"`
	ReviewedAt         *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type Person struct {
	ID    int64   `json:"id"`
	Email *string `json:"email,omitempty"`
	Name  string  `json:"name"`
}
