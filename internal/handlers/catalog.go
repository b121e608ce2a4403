// internal/handlers/catalog.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// CatalogHandler handles catalog HTTP requests
type CatalogHandler struct {
	responder
	service       ports.CatalogService
	maxImageBytes int64
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(service ports.CatalogService, maxImageBytes int64, logger *slog.Logger) *CatalogHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = 5 << 20
	}
	return &CatalogHandler{
		responder:     responder{logger: logger.With(slog.String("handler", "catalog"))},
		service:       service,
		maxImageBytes: maxImageBytes,
	}
}

// GetProduct handles GET /api/v1/products/{slug}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	h.respondJSON(w, http.StatusOK, product)
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, false)
}

// AdminListProducts handles GET /api/v1/admin/products; inactive products are included
func (h *CatalogHandler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, true)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	page, pageSize := pageParams(r)
	params := ports.ProductListParams{
		CategorySlug:    r.URL.Query().Get("category"),
		Gender:          r.URL.Query().Get("gender"),
		IncludeInactive: includeInactive,
		Page:            page,
		PageSize:        pageSize,
	}

	result, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to list products")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// CreateProduct handles POST /api/v1/admin/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product := req.ToDomain()
	if err := h.service.CreateProduct(ctx, product); err != nil {
		h.respondServiceError(w, r, err, "Failed to create product")
		return
	}

	h.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID.String()),
		slog.String("slug", product.Slug))

	h.respondJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/admin/products/{id}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product := req.ToDomain()
	if err := h.service.UpdateProduct(r.Context(), id, product); err != nil {
		h.respondServiceError(w, r, err, "Failed to update product")
		return
	}
	h.respondJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertVariants handles PUT /api/v1/admin/products/{id}/variants
func (h *CatalogHandler) UpsertVariants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req []VariantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	variants := make([]domain.Variant, 0, len(req))
	for _, v := range req {
		variants = append(variants, v.ToDomain())
	}
	if err := h.service.UpsertVariants(r.Context(), id, variants); err != nil {
		h.respondServiceError(w, r, err, "Failed to update variants")
		return
	}
	h.respondJSON(w, http.StatusOK, variants)
}

// UploadImage handles POST /api/v1/admin/products/{id}/images (multipart field "image")
func (h *CatalogHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Image is required")
		return
	}
	defer file.Close()

	url, err := h.service.UploadImage(r.Context(), id, header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to upload image")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// CategoryTree handles GET /api/v1/categories
func (h *CatalogHandler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.CategoryTree(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to load categories")
		return
	}
	h.respondJSON(w, http.StatusOK, tree)
}

// CreateCategory handles POST /api/v1/admin/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	category := req.ToDomain()
	if err := h.service.CreateCategory(r.Context(), category); err != nil {
		h.respondServiceError(w, r, err, "Failed to create category")
		return
	}
	h.respondJSON(w, http.StatusCreated, category)
}

// DeleteCategory handles DELETE /api/v1/admin/categories/{id}
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "Failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Request DTOs

// ProductRequest represents the request body for creating or updating a product
type ProductRequest struct {
	Slug        string           `json:"slug,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Gender      string           `json:"gender,omitempty"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int              `json:"stock"`
	IsActive    *bool            `json:"is_active,omitempty"`
	Variants    []VariantRequest `json:"variants,omitempty"`
}

// Validate validates the request
func (r *ProductRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	switch domain.Gender(r.Gender) {
	case "", domain.GenderMen, domain.GenderWomen, domain.GenderKid, domain.GenderUnisex:
	default:
		return fmt.Errorf("gender must be one of men, women, kid, unisex")
	}
	if r.Slug != "" && domain.Slugify(r.Slug) != r.Slug {
		return fmt.Errorf("slug %q is not url safe", r.Slug)
	}
	return nil
}

// ToDomain converts the request to a domain model
func (r *ProductRequest) ToDomain() *domain.Product {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	p := &domain.Product{
		Slug:        r.Slug,
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Tags:        r.Tags,
		Gender:      domain.Gender(r.Gender),
		CategoryID:  r.CategoryID,
		Price:       r.Price,
		Stock:       r.Stock,
		IsActive:    active,
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, v.ToDomain())
	}
	return p
}

// VariantRequest is a color/size combination in a product request
type VariantRequest struct {
	Color string           `json:"color,omitempty"`
	Size  string           `json:"size,omitempty"`
	Stock int              `json:"stock"`
	SKU   string           `json:"sku,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// ToDomain converts the request to a domain model
func (r VariantRequest) ToDomain() domain.Variant {
	return domain.Variant{
		Color: strings.TrimSpace(r.Color),
		Size:  strings.TrimSpace(r.Size),
		Stock: r.Stock,
		SKU:   r.SKU,
		Price: r.Price,
	}
}

// CategoryRequest represents the request body for creating a category
type CategoryRequest struct {
	Name     string     `json:"name"`
	Slug     string     `json:"slug,omitempty"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// ToDomain converts the request to a domain model
func (r *CategoryRequest) ToDomain() *domain.Category {
	return &domain.Category{
		Name:     r.Name,
		Slug:     r.Slug,
		ParentID: r.ParentID,
	}
}
