// internal/workers/excel_processor.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/adapters/queue"
	"github.com/ammerola/storefront-be/internal/adapters/spreadsheet"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// CatalogImporter stores parsed catalog rows
type CatalogImporter interface {
	ImportProducts(ctx context.Context, products []domain.Product) (int, error)
}

// ImportResult is written as the task result and served by the import status endpoint
type ImportResult struct {
	JobID     string   `json:"job_id"`
	Filename  string   `json:"filename"`
	Rows      int      `json:"rows"`
	Imported  int      `json:"imported"`
	RowErrors []string `json:"row_errors"`
}

// ExcelProcessor handles catalog spreadsheet imports
type ExcelProcessor struct {
	storage  ports.ObjectStorage
	importer CatalogImporter
	logger   *slog.Logger
}

// NewExcelProcessor creates a new Excel processor
func NewExcelProcessor(storage ports.ObjectStorage, importer CatalogImporter, logger *slog.Logger) *ExcelProcessor {
	return &ExcelProcessor{
		storage:  storage,
		importer: importer,
		logger:   logger.With(slog.String("processor", "excel")),
	}
}

// ProcessCatalogImport downloads the uploaded workbook and upserts its rows by slug.
// Bad rows are reported in the result; only unreadable workbooks fail the task.
func (p *ExcelProcessor) ProcessCatalogImport(ctx context.Context, t *asynq.Task) error {
	var payload queue.CatalogImportPayload
	if err := queue.DecodePayload(t, &payload); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	logger := p.logger.With(
		slog.String("job_id", payload.JobID),
		slog.String("object_key", payload.ObjectKey))
	logger.InfoContext(ctx, "processing catalog import", slog.String("filename", payload.Filename))

	data, err := p.storage.Download(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to download import file: %w", err)
	}

	result := ImportResult{
		JobID:     payload.JobID,
		Filename:  payload.Filename,
		RowErrors: []string{},
	}

	products, err := spreadsheet.ReadCatalog(data)
	if errors.Is(err, spreadsheet.ErrInvalidWorkbook) {
		logger.WarnContext(ctx, "rejected catalog workbook", "err", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	result.RowErrors = append(result.RowErrors, splitJoined(err)...)
	result.Rows = len(products) + len(result.RowErrors)

	if len(products) > 0 {
		imported, err := p.importer.ImportProducts(ctx, products)
		if err != nil && !isJoined(err) {
			return fmt.Errorf("failed to import products: %w", err)
		}
		result.Imported = imported
		result.RowErrors = append(result.RowErrors, splitJoined(err)...)
	}

	if err := writeResult(t, result); err != nil {
		logger.WarnContext(ctx, "failed to write import result", "err", err)
	}

	if err := p.storage.Delete(ctx, payload.ObjectKey); err != nil {
		logger.WarnContext(ctx, "failed to remove import file", "err", err)
	}

	logger.InfoContext(ctx, "catalog import completed",
		slog.Int("rows", result.Rows),
		slog.Int("imported", result.Imported),
		slog.Int("row_errors", len(result.RowErrors)))

	return nil
}

type joinedError interface{ Unwrap() []error }

// isJoined reports whether err carries per-row failures
func isJoined(err error) bool {
	_, ok := err.(joinedError)
	return ok
}

// splitJoined flattens an errors.Join result into its messages
func splitJoined(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(joinedError); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

func writeResult(t *asynq.Task, v interface{}) error {
	w := t.ResultWriter()
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
