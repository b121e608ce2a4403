//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ammerola/storefront-be/internal/adapters/db"
	redis_a "github.com/ammerola/storefront-be/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-be/internal/adapters/spreadsheet"
	"github.com/ammerola/storefront-be/internal/adapters/storage"
	"github.com/ammerola/storefront-be/internal/cart"
	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/internal/handlers"
	"github.com/ammerola/storefront-be/internal/handlers/middleware"
	"github.com/ammerola/storefront-be/test/helpers"
)

const adminToken = "e2e-admin-token"

type StorefrontE2ESuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	baseURL   string
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis
	sessions  *cart.SessionManager
	cancel    context.CancelFunc
}

func (s *StorefrontE2ESuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())

	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *StorefrontE2ESuite) TearDownSuite() {
	s.server.Close()
	s.sessions.Close()
	s.cancel()
}

func (s *StorefrontE2ESuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
	s.testRedis.Server.FlushAll()
}

func (s *StorefrontE2ESuite) TestCatalogSearchWorkflow() {
	// 1. Create a category and two products
	var category map[string]interface{}
	resp := s.adminRequest("POST", "/admin/categories", map[string]interface{}{"name": "Remeras"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.decodeResponse(resp, &category)

	for _, title := range []string{"Remera Básica Algodón", "Buzo Canguro Frisa"} {
		resp = s.adminRequest("POST", "/admin/products", map[string]interface{}{
			"title":       title,
			"price":       "12000",
			"stock":       10,
			"category_id": category["id"],
		})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	// 2. Exact search
	var search map[string]interface{}
	resp = s.makeRequest("GET", "/search?q=remera", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &search)
	s.Equal(true, search["ok"])
	s.Len(search["results"], 1)

	// 3. A typo falls back to fuzzy matching
	resp = s.makeRequest("GET", "/search?q=remra", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &search)
	s.Equal(true, search["ok"])
	s.NotEmpty(search["results"])

	// 4. Public listing and product page
	var list map[string]interface{}
	resp = s.makeRequest("GET", "/products?category=remeras", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &list)
	s.Equal(float64(1), list["total_count"])

	resp = s.makeRequest("GET", "/products/remera-basica-algodon", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 5. Export round-trips through the spreadsheet reader
	resp = s.adminRequest("GET", "/admin/export/products", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(spreadsheet.ContentType, resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Require().NoError(err)
	products, err := spreadsheet.ReadCatalog(body)
	s.Require().NoError(err)
	s.Len(products, 2)
}

func (s *StorefrontE2ESuite) TestCartCheckoutWorkflow() {
	resp := s.adminRequest("POST", "/admin/products", map[string]interface{}{
		"title": "Zapatilla Urbana",
		"price": "48000",
		"variants": []map[string]interface{}{
			{"color": "Negro", "size": "40", "stock": 3},
			{"color": "Blanco", "size": "40", "stock": 0},
		},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	cartPath := "/carts/e2e-cart-1"

	// 1. Add more than is in stock, plus a sold out variant
	resp = s.makeRequest("POST", cartPath+"/items", map[string]interface{}{
		"slug": "zapatilla-urbana", "color": "Negro", "size": "40", "quantity": 5,
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = s.makeRequest("POST", cartPath+"/items", map[string]interface{}{
		"slug": "zapatilla-urbana", "color": "Blanco", "size": "40", "quantity": 1,
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 2. The probe endpoint reports the adjustments without touching the cart
	var probe map[string]interface{}
	resp = s.makeRequest("POST", "/stock/validate", map[string]interface{}{
		"lines": []map[string]interface{}{
			{"slug": "zapatilla-urbana", "color": "Negro", "size": "40", "quantity": 5},
		},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &probe)
	s.Equal(true, probe["ok"])
	s.Len(probe["adjustments"], 1)

	// 3. Reconciliation clamps the cart after the debounce window
	resp = s.makeRequest("POST", cartPath+"/refresh", nil)
	s.Equal(http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	s.Eventually(func() bool {
		var view handlers.CartView
		r := s.makeRequest("GET", cartPath, nil)
		s.decodeResponse(r, &view)
		return len(view.Lines) == 1 && view.Lines[0].Quantity == 3 && len(view.Warnings) == 2
	}, 3*time.Second, 20*time.Millisecond)

	// 4. Checkout places the order and empties the cart
	var order map[string]interface{}
	resp = s.userRequest("POST", cartPath+"/checkout", "user-1", map[string]interface{}{
		"shipping": helpers.CreateTestShipping(),
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.decodeResponse(resp, &order)
	s.Equal("pending", order["status"])
	s.Equal(float64(3), order["item_count"])

	var view handlers.CartView
	resp = s.makeRequest("GET", cartPath, nil)
	s.decodeResponse(resp, &view)
	s.Empty(view.Lines)

	// 5. Stock was decremented
	resp = s.makeRequest("POST", "/stock/validate", map[string]interface{}{
		"lines": []map[string]interface{}{
			{"slug": "zapatilla-urbana", "color": "Negro", "size": "40", "quantity": 1},
		},
	})
	s.decodeResponse(resp, &probe)
	s.Require().Len(probe["adjustments"], 1)
	s.Equal(float64(0), probe["adjustments"].([]interface{})[0].(map[string]interface{})["newQuantity"])

	// 6. The order shows up for its owner and moves through the admin flow
	var mine map[string]interface{}
	resp = s.userRequest("GET", "/orders", "user-1", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &mine)
	s.Len(mine["items"], 1)

	resp = s.adminRequest("PATCH", fmt.Sprintf("/admin/orders/%s/status", order["id"]), map[string]interface{}{"status": "paid"})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.adminRequest("PATCH", fmt.Sprintf("/admin/orders/%s/status", order["id"]), map[string]interface{}{"status": "pending"})
	s.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func (s *StorefrontE2ESuite) TestFavorites() {
	var product map[string]interface{}
	resp := s.adminRequest("POST", "/admin/products", map[string]interface{}{"title": "Gorra Trucker", "price": "8500", "stock": 4})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.decodeResponse(resp, &product)

	var toggled map[string]interface{}
	resp = s.userRequest("POST", fmt.Sprintf("/favorites/%s", product["id"]), "user-2", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &toggled)
	s.Equal(true, toggled["favorite"])

	var favorites []map[string]interface{}
	resp = s.userRequest("GET", "/favorites", "user-2", nil)
	s.decodeResponse(resp, &favorites)
	s.Len(favorites, 1)

	resp = s.userRequest("POST", fmt.Sprintf("/favorites/%s", product["id"]), "user-2", nil)
	s.decodeResponse(resp, &toggled)
	s.Equal(false, toggled["favorite"])
}

func (s *StorefrontE2ESuite) TestConcurrentCartAdds() {
	resp := s.adminRequest("POST", "/admin/products", map[string]interface{}{"title": "Medias Pack", "price": "5200", "stock": 100})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := s.makeRequest("POST", "/carts/e2e-concurrent/items", map[string]interface{}{"slug": "medias-pack", "quantity": 1})
			r.Body.Close()
		}()
	}
	wg.Wait()

	var view handlers.CartView
	resp = s.makeRequest("GET", "/carts/e2e-concurrent", nil)
	s.decodeResponse(resp, &view)
	s.Require().Len(view.Lines, 1)
	s.Equal(10, view.Lines[0].Quantity)
}

func (s *StorefrontE2ESuite) TestAdminRequiresToken() {
	resp := s.makeRequest("GET", "/admin/orders", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func (s *StorefrontE2ESuite) TestHealthCheck() {
	resp, err := s.client.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	s.decodeResponse(resp, &health)
	s.Contains(health, "services")

	services := health["services"].(map[string]interface{})
	s.Contains(services, "database")
	s.Contains(services, "redis")
}

// Helper methods

func (s *StorefrontE2ESuite) startTestServer() *httptest.Server {
	logger := helpers.TestLogger()
	cfg := helpers.LoadTestConfig()
	cfg.Security.AdminToken = adminToken

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	database := s.testDB.Database
	cache := redis_a.NewCache(s.testRedis.Client, time.Minute, logger)
	manager := redis_a.NewCacheManager(cache, logger)
	objects := storage.NewLocalStorage(s.T().TempDir(), "http://localhost/files", logger)

	products := db.NewProductRepository(database, logger)
	catalog := services.NewCatalogService(services.CatalogDeps{
		Products:      products,
		Categories:    db.NewCategoryRepository(database, logger),
		Storage:       objects,
		Cache:         cache,
		Invalidator:   manager,
		MaxImageBytes: 1 << 20,
	}, logger)
	search := services.NewSearchService(products, cache, nil, services.DefaultSearchSettings(), logger)
	stock := services.NewStockService(db.NewStockRepository(database, logger), logger)
	orders := services.NewOrderService(db.NewOrderRepository(database, logger), products, nil, cfg.Orders.TaxRate, logger)
	favorites := services.NewFavoriteService(db.NewFavoriteRepository(database, logger), manager, logger)

	s.sessions = cart.NewSessionManager(ctx, stock, cache, cart.SessionConfig{
		DebounceWindow: cfg.Cart.DebounceWindow,
		SnapshotTTL:    cfg.Cart.SnapshotTTL,
		IdleTimeout:    cfg.Cart.SessionIdleTimeout,
	}, logger)

	routes := &handlers.Routes{
		Search:     handlers.NewSearchHandler(search, logger),
		Cart:       handlers.NewCartHandler(s.sessions, orders, stock, logger),
		Catalog:    handlers.NewCatalogHandler(catalog, 1<<20, logger),
		Favorites:  handlers.NewFavoriteHandler(favorites, logger),
		Orders:     handlers.NewOrderHandler(orders, logger),
		Export:     handlers.NewExportHandler(catalog, logger),
		Dashboard:  handlers.NewDashboardHandler(db.NewSearchLogRepository(database, logger), cache, logger),
		Health:     handlers.NewHealthHandler(database, s.testRedis.Client, nil, s.sessions, cfg, logger),
		AdminToken: adminToken,
	}

	mux := http.NewServeMux()
	routes.Register(mux)

	return httptest.NewServer(middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
	))
}

func (s *StorefrontE2ESuite) makeRequest(method, path string, body interface{}) *http.Response {
	return s.do(method, path, body, nil)
}

func (s *StorefrontE2ESuite) userRequest(method, path, userID string, body interface{}) *http.Response {
	return s.do(method, path, body, map[string]string{handlers.UserIDHeader: userID})
}

func (s *StorefrontE2ESuite) adminRequest(method, path string, body interface{}) *http.Response {
	return s.do(method, path, body, map[string]string{"Authorization": "Bearer " + adminToken})
}

func (s *StorefrontE2ESuite) do(method, path string, body interface{}, headers map[string]string) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.NoError(err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	s.NoError(err)

	return resp
}

func (s *StorefrontE2ESuite) decodeResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	err := json.NewDecoder(resp.Body).Decode(v)
	s.NoError(err)
}

func TestStorefrontE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(StorefrontE2ESuite))
}
