package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/auth"
	"github.com/dukerupert/submitlink/internal/backup"
	"github.com/dukerupert/submitlink/internal/model"
)

// BackupRunner is the part of backup.Manager the admin API needs.
type BackupRunner interface {
	Status() backup.Status
	List(ctx context.Context, limit int) ([]model.Backup, error)
	RunNow(ctx context.Context) (*model.Backup, error)
}

type BackupHandler struct {
	backups BackupRunner
	logger  *slog.Logger
}

func NewBackupHandler(b BackupRunner, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: b, logger: logger}
}

type backupListResponse struct {
	Status  backup.Status  `json:"status"`
	Backups []model.Backup `json:"backups"`
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.EnsureAdmin(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, r, h.logger, invalidRequest("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	list, err := h.backups.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backupListResponse{Status: h.backups.Status(), Backups: list})
}

func (h *BackupHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	staffID, err := auth.EnsureAdmin(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	record, err := h.backups.RunNow(r.Context())
	if errors.Is(err, backup.ErrNotConfigured) {
		writeError(w, r, h.logger, apperr.Unavailable(apperr.CodeBackupUnavailable, "backups are not configured"))
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("manual backup", "backup_id", record.ID, "staff_id", staffID)
	writeJSON(w, http.StatusCreated, record)
}
