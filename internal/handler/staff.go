package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/auth"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/submission"
)

// StaffHandler serves the authenticated staff API: link issuance, search and review.
type StaffHandler struct {
	engine *submission.Engine
	logger *slog.Logger
}

func NewStaffHandler(engine *submission.Engine, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{engine: engine, logger: logger}
}

// staffPerson checks staff access and parses the {personId} path value.
func (h *StaffHandler) staffPerson(r *http.Request) (staffID, personID int64, err error) {
	staffID, err = auth.EnsureStaffAccess(r.Context())
	if err != nil {
		return 0, 0, err
	}
	personID, err = pathID(r, "personId")
	if err != nil {
		return 0, 0, err
	}
	return staffID, personID, nil
}

func (h *StaffHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	staffID, personID, err := h.staffPerson(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req submission.LinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.engine.CreateOrRefreshLink(r.Context(), personID, staffID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *StaffHandler) Search(w http.ResponseWriter, r *http.Request) {
	_, personID, err := h.staffPerson(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	results, err := h.engine.SearchSubmissions(r.Context(), personID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if results == nil {
		results = []model.SubmissionSummary{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, personID, err := h.staffPerson(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	submissionID, err := pathID(r, "submissionId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details, err := h.engine.GetSubmissionDetails(r.Context(), personID, submissionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (h *StaffHandler) Review(w http.ResponseWriter, r *http.Request) {
	staffID, personID, err := h.staffPerson(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	submissionID, err := pathID(r, "submissionId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	decision, err := submission.ParseDecision(req.Decision)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if decision == submission.DecisionReject && strings.TrimSpace(req.Comment) == "" {
		writeError(w, r, h.logger, apperr.Validation(apperr.CodeRejectionCommentRequired, "a comment is required to reject an item"))
		return
	}

	result, err := h.engine.ReviewItem(r.Context(), personID, submissionID, itemID, decision, staffID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *StaffHandler) Close(w http.ResponseWriter, r *http.Request) {
	_, personID, err := h.staffPerson(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	submissionID, err := pathID(r, "submissionId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.engine.CloseSubmission(r.Context(), personID, submissionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
