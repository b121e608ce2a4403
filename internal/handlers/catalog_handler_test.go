// internal/handlers/catalog_handler_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/handlers"
	"github.com/ammerola/storefront-be/test/helpers"
	"github.com/ammerola/storefront-be/test/mocks"
)

func newCatalogHandler(t *testing.T) (*handlers.CatalogHandler, *mocks.MockCatalogService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCatalogService(ctrl)
	return handlers.NewCatalogHandler(svc, 1<<20, helpers.TestLogger()), svc
}

func TestCatalogHandler_GetProduct(t *testing.T) {
	product := helpers.CreateTestProduct()

	tests := []struct {
		name           string
		slug           string
		setupMocks     func(*mocks.MockCatalogService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name: "returns_product",
			slug: product.Slug,
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().GetProduct(gomock.Any(), product.Slug).Return(product, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp domain.Product
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, product.ID, resp.ID)
				assert.Equal(t, product.Title, resp.Title)
			},
		},
		{
			name: "product_not_found",
			slug: "missing",
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().GetProduct(gomock.Any(), "missing").
					Return(nil, fmt.Errorf("product %q: %w", "missing", domain.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "Not Found", decodeError(t, body).Error)
			},
		},
		{
			name: "service_error",
			slug: product.Slug,
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().GetProduct(gomock.Any(), product.Slug).
					Return(nil, errors.New("database connection failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "Failed to retrieve product", decodeError(t, body).Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, svc := newCatalogHandler(t)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+tt.slug, nil)
			req.SetPathValue("slug", tt.slug)
			w := httptest.NewRecorder()

			handler.GetProduct(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestCatalogHandler_ListProducts(t *testing.T) {
	products := helpers.CreateTestProducts(3)

	t.Run("public_listing_hides_inactive", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().
			ListProducts(gomock.Any(), ports.ProductListParams{
				CategorySlug: "remeras",
				Gender:       "women",
				Page:         2,
				PageSize:     100,
			}).
			Return(&ports.ProductListResult{Items: products, Page: 2, PageSize: 100, TotalCount: 103, TotalPages: 2}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=remeras&gender=women&page=2&limit=500", nil)
		w := httptest.NewRecorder()
		handler.ListProducts(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ports.ProductListResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Items, 3)
		assert.Equal(t, int64(103), resp.TotalCount)
	})

	t.Run("admin_listing_includes_inactive", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().
			ListProducts(gomock.Any(), ports.ProductListParams{IncludeInactive: true, Page: 1, PageSize: 20}).
			Return(&ports.ProductListResult{Items: []domain.Product{}, Page: 1, PageSize: 20}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/products", nil)
		w := httptest.NewRecorder()
		handler.AdminListProducts(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCatalogHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockCatalogService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name: "creates_active_product_by_default",
			body: `{"title":"Buzo Canguro","price":"45.50","stock":3,"gender":"kid","variants":[{"color":"Rojo","size":"M","stock":2}]}`,
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().
					CreateProduct(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ any, p *domain.Product) error {
						assert.True(t, p.IsActive)
						assert.Equal(t, domain.GenderKid, p.Gender)
						require.Len(t, p.Variants, 1)
						assert.Equal(t, "Rojo", p.Variants[0].Color)
						p.PrepareForStorage()
						return nil
					})
			},
			expectedStatus: http.StatusCreated,
			validateBody: func(t *testing.T, body []byte) {
				var resp domain.Product
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "buzo-canguro", resp.Slug)
				assert.Equal(t, "45.5", resp.Price.String())
			},
		},
		{
			name:           "missing_title",
			body:           `{"price":"10"}`,
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "title is required", decodeError(t, body).Message)
			},
		},
		{
			name:           "negative_price",
			body:           `{"title":"Buzo","price":"-1"}`,
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_gender",
			body:           `{"title":"Buzo","price":"1","gender":"cats"}`,
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unsafe_slug",
			body:           `{"title":"Buzo","price":"1","slug":"Buzo Rojo"}`,
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed_json",
			body:           `{"title":`,
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "Invalid request body", decodeError(t, body).Message)
			},
		},
		{
			name: "validation_error_from_service",
			body: `{"title":"Buzo","price":"1"}`,
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().CreateProduct(gomock.Any(), gomock.Any()).
					Return(fmt.Errorf("%w: duplicate variant Rojo/M", domain.ErrValidation))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, svc := newCatalogHandler(t)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.CreateProduct(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestCatalogHandler_UpdateAndDelete(t *testing.T) {
	id := uuid.New()

	t.Run("update_passes_path_id", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().UpdateProduct(gomock.Any(), id, gomock.Any()).Return(nil)

		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/"+id.String(),
			bytes.NewBufferString(`{"title":"Remera","price":"10","is_active":false}`))
		req.SetPathValue("id", id.String())
		w := httptest.NewRecorder()
		handler.UpdateProduct(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp domain.Product
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.IsActive)
	})

	t.Run("update_missing_product", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().UpdateProduct(gomock.Any(), id, gomock.Any()).Return(domain.ErrNotFound)

		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"title":"Remera","price":"10"}`))
		req.SetPathValue("id", id.String())
		w := httptest.NewRecorder()
		handler.UpdateProduct(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete_returns_no_content", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().DeleteProduct(gomock.Any(), id).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		req.SetPathValue("id", id.String())
		w := httptest.NewRecorder()
		handler.DeleteProduct(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("invalid_id", func(t *testing.T) {
		handler, _ := newCatalogHandler(t)

		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		req.SetPathValue("id", "not-a-uuid")
		w := httptest.NewRecorder()
		handler.DeleteProduct(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid ID format", decodeError(t, w.Body.Bytes()).Message)
	})
}

func TestCatalogHandler_UpsertVariants(t *testing.T) {
	id := uuid.New()
	handler, svc := newCatalogHandler(t)
	svc.EXPECT().
		UpsertVariants(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ any, _ uuid.UUID, variants []domain.Variant) error {
			require.Len(t, variants, 2)
			assert.Equal(t, "Negro", variants[0].Color)
			assert.Equal(t, "L", variants[1].Size)
			return nil
		})

	body := `[{"color":" Negro ","size":"M","stock":4},{"color":"Negro","size":"L","stock":0,"sku":"NL"}]`
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(body))
	req.SetPathValue("id", id.String())
	w := httptest.NewRecorder()
	handler.UpsertVariants(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename)}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestCatalogHandler_UploadImage(t *testing.T) {
	id := uuid.New()
	png := []byte("\x89PNG\r\n\x1a\nfake")

	t.Run("uploads_image", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().
			UploadImage(gomock.Any(), id, "front.png", gomock.Any(), "image/png").
			DoAndReturn(func(_ any, _ uuid.UUID, _ string, data io.Reader, _ string) (string, error) {
				got, err := io.ReadAll(data)
				require.NoError(t, err)
				assert.Equal(t, png, got)
				return "https://cdn.example.com/products/front.png", nil
			})

		body, ct := multipartBody(t, "image", "front.png", "image/png", png)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", id.String())
		w := httptest.NewRecorder()
		handler.UploadImage(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "https://cdn.example.com/products/front.png", resp["url"])
	})

	t.Run("missing_image_field", func(t *testing.T) {
		handler, _ := newCatalogHandler(t)

		body, ct := multipartBody(t, "file", "front.png", "image/png", png)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", id.String())
		w := httptest.NewRecorder()
		handler.UploadImage(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Image is required", decodeError(t, w.Body.Bytes()).Message)
	})

	t.Run("rejected_content_type", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().
			UploadImage(gomock.Any(), id, "notes.txt", gomock.Any(), "text/plain").
			Return("", fmt.Errorf("%w: unsupported image type text/plain", domain.ErrValidation))

		body, ct := multipartBody(t, "image", "notes.txt", "text/plain", []byte("hi"))
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", id.String())
		w := httptest.NewRecorder()
		handler.UploadImage(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCatalogHandler_Categories(t *testing.T) {
	root := &domain.Category{ID: uuid.New(), Name: "Ropa", Slug: "ropa"}
	root.Children = []*domain.Category{{ID: uuid.New(), Name: "Remeras", Slug: "remeras", ParentID: &root.ID}}

	t.Run("tree", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().CategoryTree(gomock.Any()).Return([]*domain.Category{root}, nil)

		w := httptest.NewRecorder()
		handler.CategoryTree(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp []domain.Category
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		require.Len(t, resp[0].Children, 1)
		assert.Equal(t, "remeras", resp[0].Children[0].Slug)
	})

	t.Run("create", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().
			CreateCategory(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, c *domain.Category) error {
				assert.Equal(t, "Buzos", c.Name)
				assert.Equal(t, root.ID, *c.ParentID)
				return nil
			})

		body := fmt.Sprintf(`{"name":"Buzos","parent_id":"%s"}`, root.ID)
		w := httptest.NewRecorder()
		handler.CreateCategory(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		handler, svc := newCatalogHandler(t)
		svc.EXPECT().DeleteCategory(gomock.Any(), root.ID).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		req.SetPathValue("id", root.ID.String())
		w := httptest.NewRecorder()
		handler.DeleteCategory(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
