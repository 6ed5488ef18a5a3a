// Package apperr defines the typed domain errors returned by the submission
// engine. Each carries a stable code, an HTTP-style status and an optional
// retry hint.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeInvalidEmail             Code = "INVALID_EMAIL"
	CodeRecipientEmailRequired   Code = "RECIPIENT_EMAIL_REQUIRED"
	CodeInvalidItemPayload       Code = "INVALID_ITEM_PAYLOAD"
	CodeInvalidDecision          Code = "INVALID_DECISION"
	CodeRejectionCommentRequired Code = "REJECTION_COMMENT_REQUIRED"
	CodeInvalidStatus            Code = "INVALID_STATUS"
	CodeInvalidFile              Code = "INVALID_FILE"
	CodeInvalidRequest           Code = "INVALID_REQUEST"
	CodeEmailCodeInvalid         Code = "EMAIL_CODE_INVALID"

	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeEmailVerifyRequired Code = "EMAIL_VERIFY_REQUIRED"
	CodeForbidden           Code = "FORBIDDEN"

	CodeLinkNotFound       Code = "LINK_NOT_FOUND"
	CodeSubmissionNotFound Code = "SUBMISSION_NOT_FOUND"
	CodeItemNotFound       Code = "ITEM_NOT_FOUND"

	CodeItemAlreadyResolved       Code = "ITEM_ALREADY_RESOLVED"
	CodeSubmissionAlreadyClosed   Code = "SUBMISSION_ALREADY_CLOSED"
	CodeSubmissionHasPendingItems Code = "SUBMISSION_HAS_PENDING_ITEMS"

	CodeLinkExpired      Code = "LINK_EXPIRED"
	CodeLinkRevoked      Code = "LINK_REVOKED"
	CodeEmailCodeExpired Code = "EMAIL_CODE_EXPIRED"

	CodeEmailVerifyRateLimited  Code = "EMAIL_VERIFY_RATE_LIMITED"
	CodeLinkRecoveryRateLimited Code = "LINK_RECOVERY_RATE_LIMITED"

	CodeExtractionUnavailable Code = "EXTRACTION_UNAVAILABLE"
	CodeBackupUnavailable     Code = "BACKUP_UNAVAILABLE"

	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL"
)

// Error is a domain failure.
type Error struct {
	Code       Code
	Message    string
	Status     int
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// RetryAfterSeconds rounds the retry hint up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func newError(status int, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Status: status}
}

func Validation(code Code, msg string) *Error {
	return newError(http.StatusBadRequest, code, msg)
}

func Unauthorized(code Code, msg string) *Error {
	return newError(http.StatusUnauthorized, code, msg)
}

func Forbidden(msg string) *Error {
	return newError(http.StatusForbidden, CodeForbidden, msg)
}

func NotFound(code Code, msg string) *Error {
	return newError(http.StatusNotFound, code, msg)
}

func Conflict(code Code, msg string) *Error {
	return newError(http.StatusConflict, code, msg)
}

func Gone(code Code, msg string) *Error {
	return newError(http.StatusGone, code, msg)
}

func RateLimited(code Code, msg string, retryAfter time.Duration) *Error {
	e := newError(http.StatusTooManyRequests, code, msg)
	if retryAfter > 0 {
		e.RetryAfter = retryAfter
	}
	return e
}

func Unavailable(code Code, msg string) *Error {
	return newError(http.StatusServiceUnavailable, code, msg)
}

// Sentinels for errors.Is comparisons.
var (
	ErrEmailVerifyRequired       = Unauthorized(CodeEmailVerifyRequired, "email verification required")
	ErrForbidden                 = Forbidden("staff access required")
	ErrLinkNotFound              = NotFound(CodeLinkNotFound, "submission link not found")
	ErrSubmissionNotFound        = NotFound(CodeSubmissionNotFound, "submission not found")
	ErrItemNotFound              = NotFound(CodeItemNotFound, "submission item not found")
	ErrItemAlreadyResolved       = Conflict(CodeItemAlreadyResolved, "submission item already resolved")
	ErrSubmissionAlreadyClosed   = Conflict(CodeSubmissionAlreadyClosed, "submission is closed")
	ErrSubmissionHasPendingItems = Conflict(CodeSubmissionHasPendingItems, "submission has pending items")
)

type body struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Write renders e as {"error":{"code","message"}} with its status and a
// Retry-After header when a hint is set.
func Write(w http.ResponseWriter, e *Error) {
	var b body
	b.Error.Code = e.Code
	b.Error.Message = e.Message
	if secs := e.RetryAfterSeconds(); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(b)
}
