package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/auth"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/submission"
)

// PublicHandler serves the token-addressed submitter API. The link token is
// the {token} path value and the session token travels as a bearer header.
type PublicHandler struct {
	engine *submission.Engine
	logger *slog.Logger
}

func NewPublicHandler(engine *submission.Engine, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{engine: engine, logger: logger}
}

func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.GetPublicSubmission(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *PublicHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.engine.RequestVerifyCode(r.Context(), r.PathValue("token"), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PublicHandler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.engine.ConfirmVerifyCode(r.Context(), r.PathValue("token"), req.Email, req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PublicHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.engine.GetDraft(r.Context(), r.PathValue("token"), auth.BearerToken(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *PublicHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var payload model.DraftPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	draft, err := h.engine.UpdateDraft(r.Context(), r.PathValue("token"), auth.BearerToken(r), payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *PublicHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sub, err := h.engine.Submit(r.Context(), r.PathValue("token"), auth.BearerToken(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// multipart framing overhead allowed on top of the file itself
const formOverhead = 1 << 20

func (h *PublicHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, submission.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(submission.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidFile, "file exceeds the 10 MiB limit"))
			return
		}
		writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidFile, "multipart form with a file is required"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidFile, "file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, submission.MaxUploadBytes+1))
	if err != nil {
		writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidFile, "could not read file"))
		return
	}

	out, err := h.engine.AnalyzeFile(r.Context(), r.PathValue("token"), auth.BearerToken(r), submission.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
