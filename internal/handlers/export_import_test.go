// internal/handlers/export_import_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-be/internal/adapters/queue"
	"github.com/ammerola/storefront-be/internal/adapters/spreadsheet"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/handlers"
	"github.com/ammerola/storefront-be/test/helpers"
	"github.com/ammerola/storefront-be/test/mocks"
)

func TestExportHandler_ExportExcel(t *testing.T) {
	t.Run("pages_through_catalog", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockCatalogService(ctrl)
		products := helpers.CreateTestProducts(3)

		gomock.InOrder(
			svc.EXPECT().
				ListProducts(gomock.Any(), ports.ProductListParams{CategorySlug: "buzos", IncludeInactive: true, Page: 1, PageSize: 100}).
				Return(&ports.ProductListResult{Items: products[:2], Page: 1, TotalPages: 2}, nil),
			svc.EXPECT().
				ListProducts(gomock.Any(), ports.ProductListParams{CategorySlug: "buzos", IncludeInactive: true, Page: 2, PageSize: 100}).
				Return(&ports.ProductListResult{Items: products[2:], Page: 2, TotalPages: 2}, nil),
		)

		handler := handlers.NewExportHandler(svc, helpers.TestLogger())
		w := httptest.NewRecorder()
		handler.ExportExcel(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/export/products?category=buzos", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, spreadsheet.ContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "catalog_export_")

		got, err := spreadsheet.ReadCatalog(w.Body.Bytes())
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, products[0].Slug, got[0].Slug)
		assert.Equal(t, products[2].Title, got[2].Title)
	})

	t.Run("catalog_failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockCatalogService(ctrl)
		svc.EXPECT().ListProducts(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		handler := handlers.NewExportHandler(svc, helpers.TestLogger())
		w := httptest.NewRecorder()
		handler.ExportExcel(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/export/products", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to retrieve products", decodeError(t, w.Body.Bytes()).Message)
	})
}

type fakeEnqueuer struct {
	payloads []queue.CatalogImportPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueCatalogImport(_ context.Context, p queue.CatalogImportPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return p.JobID, nil
}

type fakeInspector struct {
	info *asynq.TaskInfo
	err  error
}

func (f *fakeInspector) GetTaskInfo(_, _ string) (*asynq.TaskInfo, error) {
	return f.info, f.err
}

func TestImportHandler_ImportExcel(t *testing.T) {
	sheet, err := spreadsheet.EncodeCatalog(helpers.CreateTestProducts(2))
	require.NoError(t, err)

	t.Run("stores_file_and_queues_job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storage := mocks.NewMockObjectStorage(ctrl)
		enq := &fakeEnqueuer{}

		var storedKey string
		storage.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any(), spreadsheet.ContentType).
			DoAndReturn(func(_ context.Context, key string, data io.Reader, _ string) (string, error) {
				storedKey = key
				got, err := io.ReadAll(data)
				require.NoError(t, err)
				assert.Equal(t, sheet, got)
				return "s3://bucket/" + key, nil
			})

		handler := handlers.NewImportHandler(storage, enq, nil, 1<<20, helpers.TestLogger())
		body, ct := multipartBody(t, "file", "catalog.xlsx", spreadsheet.ContentType, sheet)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/import/products", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set(handlers.UserIDHeader, "admin-1")
		w := httptest.NewRecorder()

		handler.ImportExcel(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "queued", resp["status"])

		require.Len(t, enq.payloads, 1)
		p := enq.payloads[0]
		assert.Equal(t, resp["job_id"], p.JobID)
		assert.Equal(t, storedKey, p.ObjectKey)
		assert.Equal(t, "imports/"+p.JobID+".xlsx", p.ObjectKey)
		assert.Equal(t, "catalog.xlsx", p.Filename)
		assert.Equal(t, "admin-1", p.RequestedBy)
	})

	t.Run("rejects_non_xlsx", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewImportHandler(mocks.NewMockObjectStorage(ctrl), &fakeEnqueuer{}, nil, 1<<20, helpers.TestLogger())

		body, ct := multipartBody(t, "file", "catalog.csv", "text/csv", []byte("a,b"))
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		handler.ImportExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Only .xlsx files are allowed", decodeError(t, w.Body.Bytes()).Message)
	})

	t.Run("rejects_oversized_file", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewImportHandler(mocks.NewMockObjectStorage(ctrl), &fakeEnqueuer{}, nil, 16, helpers.TestLogger())

		body, ct := multipartBody(t, "file", "catalog.xlsx", spreadsheet.ContentType, []byte(strings.Repeat("x", 64)))
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		handler.ImportExcel(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("enqueue_failure_removes_upload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storage := mocks.NewMockObjectStorage(ctrl)
		storage.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("url", nil)
		storage.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)

		handler := handlers.NewImportHandler(storage, &fakeEnqueuer{err: errors.New("redis down")}, nil, 1<<20, helpers.TestLogger())
		body, ct := multipartBody(t, "file", "catalog.xlsx", spreadsheet.ContentType, sheet)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		handler.ImportExcel(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestImportHandler_ImportStatus(t *testing.T) {
	jobID := uuid.New().String()
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		jobID          string
		inspector      handlers.TaskInspector
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name:  "completed_job_with_result",
			jobID: jobID,
			inspector: &fakeInspector{info: &asynq.TaskInfo{
				ID:          jobID,
				State:       asynq.TaskStateCompleted,
				CompletedAt: completed,
				Result:      []byte(`{"imported":12,"row_errors":[]}`),
			}},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp handlers.ImportStatusResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "completed", resp.Status)
				require.NotNil(t, resp.CompletedAt)
				assert.True(t, completed.Equal(*resp.CompletedAt))
				assert.JSONEq(t, `{"imported":12,"row_errors":[]}`, string(resp.Result))
			},
		},
		{
			name:  "retrying_job",
			jobID: jobID,
			inspector: &fakeInspector{info: &asynq.TaskInfo{
				ID:      jobID,
				State:   asynq.TaskStateRetry,
				Retried: 2,
				LastErr: "failed to download import file",
			}},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp handlers.ImportStatusResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "retry", resp.Status)
				assert.Equal(t, 2, resp.Retried)
				assert.Nil(t, resp.CompletedAt)
				assert.Empty(t, resp.Result)
			},
		},
		{
			name:           "unknown_job",
			jobID:          jobID,
			inspector:      &fakeInspector{err: asynq.ErrTaskNotFound},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "inspector_failure",
			jobID:          jobID,
			inspector:      &fakeInspector{err: errors.New("redis down")},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "invalid_job_id",
			jobID:          "job-1",
			inspector:      &fakeInspector{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "status_unavailable",
			jobID:          jobID,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			handler := handlers.NewImportHandler(mocks.NewMockObjectStorage(ctrl), &fakeEnqueuer{}, tt.inspector, 1<<20, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/import/"+tt.jobID, nil)
			req.SetPathValue("jobId", tt.jobID)
			w := httptest.NewRecorder()

			handler.ImportStatus(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}
