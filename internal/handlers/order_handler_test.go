// internal/handlers/order_handler_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/handlers"
	"github.com/ammerola/storefront-be/test/helpers"
	"github.com/ammerola/storefront-be/test/mocks"
)

func testOrder(userID string) *domain.Order {
	return &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		ItemCount: 2,
		Subtotal:  decimal.NewFromInt(100),
		Tax:       decimal.NewFromInt(15),
		Total:     decimal.NewFromInt(115),
		Shipping:  helpers.CreateTestShipping(),
	}
}

func TestOrderHandler_GetOrder(t *testing.T) {
	order := testOrder("user-1")

	tests := []struct {
		name           string
		orderID        string
		userID         string
		setupMocks     func(*mocks.MockOrderService)
		expectedStatus int
	}{
		{
			name:    "owner_sees_order",
			orderID: order.ID.String(),
			userID:  "user-1",
			setupMocks: func(m *mocks.MockOrderService) {
				m.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "other_user_gets_not_found",
			orderID: order.ID.String(),
			userID:  "user-2",
			setupMocks: func(m *mocks.MockOrderService) {
				m.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:    "anonymous_gets_not_found",
			orderID: order.ID.String(),
			setupMocks: func(m *mocks.MockOrderService) {
				m.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid_uuid_format",
			orderID:        "not-a-uuid",
			userID:         "user-1",
			setupMocks:     func(m *mocks.MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "missing_order",
			orderID: order.ID.String(),
			userID:  "user-1",
			setupMocks: func(m *mocks.MockOrderService) {
				m.EXPECT().GetOrder(gomock.Any(), order.ID).Return(nil, domain.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockOrderService(ctrl)
			tt.setupMocks(svc)
			handler := handlers.NewOrderHandler(svc, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+tt.orderID, nil)
			req.SetPathValue("id", tt.orderID)
			if tt.userID != "" {
				req.Header.Set(handlers.UserIDHeader, tt.userID)
			}
			w := httptest.NewRecorder()

			handler.GetOrder(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestOrderHandler_ListMyOrders(t *testing.T) {
	t.Run("requires_user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewOrderHandler(mocks.NewMockOrderService(ctrl), helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.ListMyOrders(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("scopes_listing_to_user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockOrderService(ctrl)
		svc.EXPECT().
			ListOrders(gomock.Any(), ports.OrderListParams{UserID: "user-1", Page: 1, PageSize: 5}).
			Return(&ports.OrderListResult{Items: []domain.Order{*testOrder("user-1")}, Page: 1, PageSize: 5, TotalCount: 1, TotalPages: 1}, nil)
		handler := handlers.NewOrderHandler(svc, helpers.TestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5", nil)
		req.Header.Set(handlers.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		handler.ListMyOrders(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ports.OrderListResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Items, 1)
	})
}

func TestOrderHandler_ListOrders_Admin(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockOrderService(ctrl)
	svc.EXPECT().
		ListOrders(gomock.Any(), ports.OrderListParams{Status: domain.OrderStatusPaid, UserID: "user-9", Page: 3, PageSize: 20}).
		Return(&ports.OrderListResult{Items: []domain.Order{}}, nil)
	handler := handlers.NewOrderHandler(svc, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.ListOrders(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?status=paid&user_id=user-9&page=3", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	order := testOrder("user-1")

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockOrderService)
		expectedStatus int
	}{
		{
			name: "marks_order_paid",
			body: `{"status":"paid"}`,
			setupMocks: func(m *mocks.MockOrderService) {
				paid := *order
				paid.Status = domain.OrderStatusPaid
				m.EXPECT().UpdateStatus(gomock.Any(), order.ID, domain.OrderStatusPaid).Return(&paid, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown_status",
			body:           `{"status":"lost"}`,
			setupMocks:     func(m *mocks.MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid_transition",
			body: `{"status":"delivered"}`,
			setupMocks: func(m *mocks.MockOrderService) {
				m.EXPECT().UpdateStatus(gomock.Any(), order.ID, domain.OrderStatusDelivered).
					Return(nil, domain.ErrInvalidStatusTransition)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "service_error",
			body: `{"status":"shipped"}`,
			setupMocks: func(m *mocks.MockOrderService) {
				m.EXPECT().UpdateStatus(gomock.Any(), order.ID, domain.OrderStatusShipped).
					Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockOrderService(ctrl)
			tt.setupMocks(svc)
			handler := handlers.NewOrderHandler(svc, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodPatch, "/", bytes.NewBufferString(tt.body))
			req.SetPathValue("id", order.ID.String())
			w := httptest.NewRecorder()

			handler.UpdateStatus(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestFavoriteHandler(t *testing.T) {
	productID := uuid.New()

	t.Run("toggle_on", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockFavoriteService(ctrl)
		svc.EXPECT().Toggle(gomock.Any(), "user-1", productID).Return(true, nil)
		handler := handlers.NewFavoriteHandler(svc, helpers.TestLogger())

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetPathValue("productId", productID.String())
		req.Header.Set(handlers.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		handler.Toggle(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			ProductID uuid.UUID `json:"product_id"`
			Favorite  bool      `json:"favorite"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, productID, resp.ProductID)
		assert.True(t, resp.Favorite)
	})

	t.Run("toggle_without_user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockFavoriteService(ctrl)
		svc.EXPECT().Toggle(gomock.Any(), "", productID).Return(false, domain.ErrValidation)
		handler := handlers.NewFavoriteHandler(svc, helpers.TestLogger())

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetPathValue("productId", productID.String())
		w := httptest.NewRecorder()
		handler.Toggle(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid_product_id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewFavoriteHandler(mocks.NewMockFavoriteService(ctrl), helpers.TestLogger())

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetPathValue("productId", "nope")
		w := httptest.NewRecorder()
		handler.Toggle(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockFavoriteService(ctrl)
		svc.EXPECT().List(gomock.Any(), "user-1").Return(helpers.CreateTestProducts(2), nil)
		handler := handlers.NewFavoriteHandler(svc, helpers.TestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
		req.Header.Set(handlers.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		handler.List(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp []domain.Product
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})
}
