// internal/handlers/cart_handler_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-be/internal/cart"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/handlers"
	"github.com/ammerola/storefront-be/internal/pkg/logger"
	"github.com/ammerola/storefront-be/test/helpers"
	"github.com/ammerola/storefront-be/test/mocks"
)

type cartFixture struct {
	handler  *handlers.CartHandler
	sessions *cart.SessionManager
	orders   *mocks.MockOrderService
	probe    *mocks.MockInventoryProbe
}

// newCartFixture builds a handler over real sessions. The debounce window is long
// enough that no reconciliation pass reaches the probe during a test.
func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	probe := mocks.NewMockInventoryProbe(ctrl)
	orders := mocks.NewMockOrderService(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	sessions := cart.NewSessionManager(ctx, probe, nil, cart.SessionConfig{DebounceWindow: time.Hour}, helpers.TestLogger())
	t.Cleanup(func() {
		sessions.Close()
		cancel()
	})

	return &cartFixture{
		handler:  handlers.NewCartHandler(sessions, orders, probe, helpers.TestLogger()),
		sessions: sessions,
		orders:   orders,
		probe:    probe,
	}
}

func (f *cartFixture) seed(t *testing.T, id string, lines ...domain.CartLine) *cart.Session {
	t.Helper()
	s, release, err := f.sessions.Acquire(context.Background(), id)
	require.NoError(t, err)
	defer release()
	for _, l := range lines {
		require.NoError(t, s.Store.Add(l))
	}
	return s
}

func cartRequest(method, id, body string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/carts/"+id, bytes.NewBufferString(body))
	req.SetPathValue("id", id)
	return req
}

func decodeCart(t *testing.T, body []byte) handlers.CartView {
	t.Helper()
	var view handlers.CartView
	require.NoError(t, json.Unmarshal(body, &view))
	return view
}

func TestCartHandler_AddItem(t *testing.T) {
	tests := []struct {
		name           string
		cartID         string
		body           string
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name:           "adds_line_with_default_quantity",
			cartID:         "cart-1",
			body:           `{"slug":"remera-basica","color":"Rojo","size":"M","title":"Remera"}`,
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				view := decodeCart(t, body)
				require.Len(t, view.Lines, 1)
				assert.Equal(t, 1, view.Lines[0].Quantity)
				assert.Equal(t, 1, view.ItemCount)
			},
		},
		{
			name:           "negative_quantity",
			cartID:         "cart-1",
			body:           `{"slug":"remera-basica","quantity":-2}`,
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "quantity must be positive", decodeError(t, body).Message)
			},
		},
		{
			name:           "quantity_above_line_cap",
			cartID:         "cart-1",
			body:           `{"slug":"remera-basica","quantity":1000}`,
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "quantity cannot exceed 999", decodeError(t, body).Message)
			},
		},
		{
			name:           "missing_slug",
			cartID:         "cart-1",
			body:           `{"quantity":2}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid_cart_id",
			cartID:         "bad id!",
			body:           `{"slug":"remera-basica"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed_body",
			cartID:         "cart-1",
			body:           `[`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t)
			w := httptest.NewRecorder()

			f.handler.AddItem(w, cartRequest(http.MethodPost, tt.cartID, tt.body))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestCartHandler_AddItem_MergesSameTuple(t *testing.T) {
	f := newCartFixture(t)
	f.seed(t, "cart-2", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))

	w := httptest.NewRecorder()
	f.handler.AddItem(w, cartRequest(http.MethodPost, "cart-2", `{"slug":"buzo","color":"Negro","size":"L","quantity":3}`))

	require.Equal(t, http.StatusOK, w.Code)
	view := decodeCart(t, w.Body.Bytes())
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
}

func TestCartHandler_AddItem_MergePastLineCap(t *testing.T) {
	f := newCartFixture(t)
	s := f.seed(t, "cart-3", helpers.CreateTestCartLine("buzo", "Negro", "L", domain.MaxLineQuantity))

	w := httptest.NewRecorder()
	f.handler.AddItem(w, cartRequest(http.MethodPost, "cart-3", `{"slug":"buzo","color":"Negro","size":"L","quantity":1}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	qty, ok := s.Store.Quantity(domain.LineKey{Slug: "buzo", Color: "Negro", Size: "L"})
	require.True(t, ok)
	assert.Equal(t, domain.MaxLineQuantity, qty)
}

func TestCartHandler_UpdateAndRemove(t *testing.T) {
	t.Run("update_above_line_cap", func(t *testing.T) {
		f := newCartFixture(t)
		f.seed(t, "c", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))

		w := httptest.NewRecorder()
		f.handler.UpdateItem(w, cartRequest(http.MethodPut, "c", `{"slug":"buzo","color":"Negro","size":"L","quantity":1000}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update_quantity", func(t *testing.T) {
		f := newCartFixture(t)
		f.seed(t, "c", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))

		w := httptest.NewRecorder()
		f.handler.UpdateItem(w, cartRequest(http.MethodPut, "c", `{"slug":"buzo","color":"Negro","size":"L","quantity":7}`))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 7, decodeCart(t, w.Body.Bytes()).ItemCount)
	})

	t.Run("zero_quantity_removes_line", func(t *testing.T) {
		f := newCartFixture(t)
		f.seed(t, "c", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))

		w := httptest.NewRecorder()
		f.handler.UpdateItem(w, cartRequest(http.MethodPut, "c", `{"slug":"buzo","color":"Negro","size":"L","quantity":0}`))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeCart(t, w.Body.Bytes()).Lines)
	})

	t.Run("update_unknown_line", func(t *testing.T) {
		f := newCartFixture(t)
		f.seed(t, "c", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))

		w := httptest.NewRecorder()
		f.handler.UpdateItem(w, cartRequest(http.MethodPut, "c", `{"slug":"buzo","color":"Negro","size":"S","quantity":1}`))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Cart line not found", decodeError(t, w.Body.Bytes()).Message)
	})

	t.Run("remove_line", func(t *testing.T) {
		f := newCartFixture(t)
		f.seed(t, "c",
			helpers.CreateTestCartLine("buzo", "Negro", "L", 2),
			helpers.CreateTestCartLine("remera", "", "", 1))

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/carts/c/items?slug=buzo&color=Negro&size=L", nil)
		req.SetPathValue("id", "c")
		w := httptest.NewRecorder()
		f.handler.RemoveItem(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		view := decodeCart(t, w.Body.Bytes())
		require.Len(t, view.Lines, 1)
		assert.Equal(t, "remera", view.Lines[0].Slug)
	})

	t.Run("remove_requires_slug", func(t *testing.T) {
		f := newCartFixture(t)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/carts/c/items", nil)
		req.SetPathValue("id", "c")
		w := httptest.NewRecorder()
		f.handler.RemoveItem(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCartHandler_GetAndDelete(t *testing.T) {
	f := newCartFixture(t)
	f.seed(t, "cart-9", helpers.CreateTestCartLine("buzo", "", "", 2))

	w := httptest.NewRecorder()
	f.handler.GetCart(w, cartRequest(http.MethodGet, "cart-9", ""))
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeCart(t, w.Body.Bytes())
	assert.Equal(t, "cart-9", view.ID)
	assert.Equal(t, 2, view.ItemCount)

	w = httptest.NewRecorder()
	f.handler.DeleteCart(w, cartRequest(http.MethodDelete, "cart-9", ""))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, f.sessions.Len())

	w = httptest.NewRecorder()
	f.handler.DeleteCart(w, cartRequest(http.MethodDelete, "../etc", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartHandler_Refresh(t *testing.T) {
	f := newCartFixture(t)
	s := f.seed(t, "cart-r", helpers.CreateTestCartLine("buzo", "", "", 1))
	before := s.Reconciler.RefreshCount()

	w := httptest.NewRecorder()
	f.handler.Refresh(w, cartRequest(http.MethodPost, "cart-r", ""))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, before+1, s.Reconciler.RefreshCount())
	assert.Equal(t, before+1, decodeCart(t, w.Body.Bytes()).RefreshCount)
}

func TestCartHandler_Checkout(t *testing.T) {
	shippingBody := func() string {
		b, _ := json.Marshal(handlers.CheckoutRequest{Shipping: helpers.CreateTestShipping()})
		return string(b)
	}

	t.Run("places_order_and_clears_cart", func(t *testing.T) {
		f := newCartFixture(t)
		s := f.seed(t, "co", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))
		order := testOrder("user-1")

		f.orders.EXPECT().
			Checkout(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ports.CheckoutRequest) (*domain.Order, error) {
				assert.Equal(t, "user-1", req.UserID)
				require.Len(t, req.Lines, 1)
				assert.Equal(t, 2, req.Lines[0].Quantity)
				assert.Equal(t, "Córdoba", req.Shipping.City)
				return order, nil
			})

		req := cartRequest(http.MethodPost, "co", shippingBody())
		req.Header.Set(handlers.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		f.handler.Checkout(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp domain.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, order.ID, resp.ID)
		assert.Equal(t, 0, s.Store.Len())
	})

	t.Run("insufficient_stock_keeps_cart_and_refreshes", func(t *testing.T) {
		f := newCartFixture(t)
		s := f.seed(t, "co", helpers.CreateTestCartLine("buzo", "Negro", "L", 2))
		before := s.Reconciler.RefreshCount()

		f.orders.EXPECT().
			Checkout(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("buzo Negro/L: %w", domain.ErrInsufficientStock))

		w := httptest.NewRecorder()
		f.handler.Checkout(w, cartRequest(http.MethodPost, "co", shippingBody()))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 1, s.Store.Len())
		assert.Equal(t, before+1, s.Reconciler.RefreshCount())
	})

	t.Run("empty_cart", func(t *testing.T) {
		f := newCartFixture(t)
		f.orders.EXPECT().
			Checkout(gomock.Any(), gomock.Any()).
			Return(nil, domain.ErrEmptyCart)

		w := httptest.NewRecorder()
		f.handler.Checkout(w, cartRequest(http.MethodPost, "co", shippingBody()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCartHandler_ValidateStock(t *testing.T) {
	lines := []domain.CartLine{helpers.CreateTestCartLine("buzo", "Negro", "L", 3)}

	t.Run("returns_adjustments", func(t *testing.T) {
		f := newCartFixture(t)
		f.probe.EXPECT().
			Probe(gomock.Any(), lines).
			Return(&domain.StockProbeResponse{
				OK:          true,
				Adjustments: []domain.StockAdjustment{{Slug: "buzo", Color: "Negro", Size: "L", Title: "Buzo", Available: 1}},
			}, nil)

		body, _ := json.Marshal(handlers.StockValidationRequest{Lines: lines})
		w := httptest.NewRecorder()
		f.handler.ValidateStock(w, httptest.NewRequest(http.MethodPost, "/api/v1/stock/validate", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		var resp domain.StockProbeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		require.Len(t, resp.Adjustments, 1)
		assert.Equal(t, 1, resp.Adjustments[0].Available)
	})

	t.Run("probe_failure_reports_not_ok", func(t *testing.T) {
		f := newCartFixture(t)
		f.probe.EXPECT().Probe(gomock.Any(), lines).Return(nil, errors.New("db down"))

		body, _ := json.Marshal(handlers.StockValidationRequest{Lines: lines})
		w := httptest.NewRecorder()
		f.handler.ValidateStock(w, httptest.NewRequest(http.MethodPost, "/api/v1/stock/validate", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":false,"adjustments":[]}`, w.Body.String())
	})

	t.Run("empty_batch", func(t *testing.T) {
		f := newCartFixture(t)

		w := httptest.NewRecorder()
		f.handler.ValidateStock(w, httptest.NewRequest(http.MethodPost, "/api/v1/stock/validate", bytes.NewBufferString(`{"lines":[]}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWithCartID(t *testing.T) {
	var got string
	h := handlers.WithCartID(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value(logger.ContextKeyCartID).(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/abc", nil)
	req.SetPathValue("id", "abc")
	h(httptest.NewRecorder(), req)

	assert.Equal(t, "abc", got)
}
