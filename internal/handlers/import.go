// internal/handlers/import.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/adapters/queue"
	"github.com/ammerola/storefront-be/internal/adapters/spreadsheet"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// ImportEnqueuer schedules catalog imports for the worker
type ImportEnqueuer interface {
	EnqueueCatalogImport(ctx context.Context, payload queue.CatalogImportPayload) (string, error)
}

// TaskInspector reads the state of queued tasks
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// ImportHandler handles catalog spreadsheet imports
type ImportHandler struct {
	responder
	storage     ports.ObjectStorage
	enqueuer    ImportEnqueuer
	inspector   TaskInspector
	maxFileSize int64
}

// NewImportHandler creates a new import handler. inspector may be nil.
func NewImportHandler(storage ports.ObjectStorage, enqueuer ImportEnqueuer, inspector TaskInspector, maxFileSize int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		responder:   responder{logger: logger.With(slog.String("handler", "import"))},
		storage:     storage,
		enqueuer:    enqueuer,
		inspector:   inspector,
		maxFileSize: maxFileSize,
	}
}

// ImportExcel handles POST /api/v1/admin/import/products (multipart field "file")
func (h *ImportHandler) ImportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+(1<<20))
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		h.respondError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxFileSize))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != spreadsheet.ContentType &&
		!strings.EqualFold(path.Ext(header.Filename), ".xlsx") {
		h.respondError(w, r, http.StatusBadRequest, "Only .xlsx files are allowed")
		return
	}

	jobID := uuid.New().String()
	key := fmt.Sprintf("imports/%s.xlsx", jobID)

	if _, err := h.storage.Upload(ctx, key, file, spreadsheet.ContentType); err != nil {
		h.logger.ErrorContext(ctx, "failed to store import file", "err", err)
		h.respondError(w, r, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	taskID, err := h.enqueuer.EnqueueCatalogImport(ctx, queue.CatalogImportPayload{
		JobID:       jobID,
		ObjectKey:   key,
		Filename:    header.Filename,
		RequestedBy: userIDFrom(r),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to queue import job", "err", err)
		if delErr := h.storage.Delete(ctx, key); delErr != nil {
			h.logger.WarnContext(ctx, "failed to remove orphaned upload",
				slog.String("key", key),
				"err", delErr)
		}
		h.respondError(w, r, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	h.logger.InfoContext(ctx, "catalog import queued",
		slog.String("job_id", jobID),
		slog.String("task_id", taskID),
		slog.String("filename", header.Filename))

	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  jobID,
		"status":  "queued",
		"message": "Catalog import has been queued for processing",
	})
}

// ImportStatusResponse describes a queued import
type ImportStatusResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Retried     int             `json:"retried"`
	LastError   string          `json:"last_error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// ImportStatus handles GET /api/v1/admin/import/{jobId}
func (h *ImportHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("jobId")

	if _, err := uuid.Parse(jobID); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid job ID format")
		return
	}
	if h.inspector == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "Job status is unavailable")
		return
	}

	info, err := h.inspector.GetTaskInfo(queue.QueueDefault, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			h.respondError(w, r, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to get job status",
			slog.String("job_id", jobID),
			"err", err)
		h.respondError(w, r, http.StatusInternalServerError, "Failed to get job status")
		return
	}

	resp := ImportStatusResponse{
		JobID:     jobID,
		Status:    info.State.String(),
		Retried:   info.Retried,
		LastError: info.LastErr,
	}
	if !info.CompletedAt.IsZero() {
		resp.CompletedAt = &info.CompletedAt
	}
	if json.Valid(info.Result) {
		resp.Result = info.Result
	}
	h.respondJSON(w, http.StatusOK, resp)
}
