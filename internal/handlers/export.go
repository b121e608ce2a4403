// internal/handlers/export.go
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/storefront-be/internal/adapters/spreadsheet"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

const exportPageSize = 100

// ExportHandler serves catalog exports
type ExportHandler struct {
	responder
	catalog ports.CatalogService
}

// NewExportHandler creates a new export handler
func NewExportHandler(catalog ports.CatalogService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		responder: responder{logger: logger.With(slog.String("handler", "export"))},
		catalog:   catalog,
	}
}

// ExportExcel handles GET /api/v1/admin/export/products?category=
func (h *ExportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := r.URL.Query().Get("category")

	h.logger.InfoContext(ctx, "Starting catalog export", slog.String("category", category))

	products, err := h.allProducts(ctx, category)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retrieve products")
		return
	}

	// Generate Excel file in memory
	excelData, err := spreadsheet.EncodeCatalog(products)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to generate Excel file", "err", err)
		h.respondError(w, r, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("catalog_export_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", spreadsheet.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(excelData)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(excelData); err != nil {
		h.logger.ErrorContext(ctx, "Failed to write Excel response", "err", err)
		return
	}

	h.logger.InfoContext(ctx, "Catalog export completed",
		slog.Int("total_rows", len(products)),
		slog.String("filename", filename))
}

// allProducts pages through the catalog, inactive products included
func (h *ExportHandler) allProducts(ctx context.Context, category string) ([]domain.Product, error) {
	var products []domain.Product
	for page := 1; ; page++ {
		result, err := h.catalog.ListProducts(ctx, ports.ProductListParams{
			CategorySlug:    category,
			IncludeInactive: true,
			Page:            page,
			PageSize:        exportPageSize,
		})
		if err != nil {
			return nil, err
		}
		products = append(products, result.Items...)
		if page >= result.TotalPages || len(result.Items) == 0 {
			return products, nil
		}
	}
}
