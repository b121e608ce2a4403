// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/ammerola/storefront-be/internal/handlers/middleware"
)

const apiV1 = "/api/v1"

// Routes wires every handler onto a ServeMux. Nil handlers leave their routes unregistered.
type Routes struct {
	Search    *SearchHandler
	Cart      *CartHandler
	Catalog   *CatalogHandler
	Favorites *FavoriteHandler
	Orders    *OrderHandler
	Export    *ExportHandler
	Import    *ImportHandler
	Health    *HealthHandler
	Dashboard *DashboardHandler

	// Metrics serves /metrics when set
	Metrics    http.Handler
	AdminToken string
}

// Register adds the routes to mux using method-specific patterns
func (rt *Routes) Register(mux *http.ServeMux) {
	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health.Health)
		mux.HandleFunc("GET /ready", rt.Health.Readiness)
		mux.HandleFunc("GET "+apiV1+"/health", rt.Health.Health)
	}
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	if rt.Search != nil {
		mux.HandleFunc("GET "+apiV1+"/search", rt.Search.Search)
	}

	if rt.Cart != nil {
		c := rt.Cart
		mux.HandleFunc("GET "+apiV1+"/carts/{id}", WithCartID(c.GetCart))
		mux.HandleFunc("DELETE "+apiV1+"/carts/{id}", WithCartID(c.DeleteCart))
		mux.HandleFunc("POST "+apiV1+"/carts/{id}/items", WithCartID(c.AddItem))
		mux.HandleFunc("PUT "+apiV1+"/carts/{id}/items", WithCartID(c.UpdateItem))
		mux.HandleFunc("DELETE "+apiV1+"/carts/{id}/items", WithCartID(c.RemoveItem))
		mux.HandleFunc("POST "+apiV1+"/carts/{id}/refresh", WithCartID(c.Refresh))
		mux.HandleFunc("POST "+apiV1+"/carts/{id}/checkout", WithCartID(c.Checkout))
		mux.HandleFunc("POST "+apiV1+"/stock/validate", c.ValidateStock)
	}

	if rt.Catalog != nil {
		mux.HandleFunc("GET "+apiV1+"/products", rt.Catalog.ListProducts)
		mux.HandleFunc("GET "+apiV1+"/products/{slug}", rt.Catalog.GetProduct)
		mux.HandleFunc("GET "+apiV1+"/categories", rt.Catalog.CategoryTree)
	}

	if rt.Favorites != nil {
		mux.HandleFunc("GET "+apiV1+"/favorites", rt.Favorites.List)
		mux.HandleFunc("POST "+apiV1+"/favorites/{productId}", rt.Favorites.Toggle)
	}

	if rt.Orders != nil {
		mux.HandleFunc("GET "+apiV1+"/orders", rt.Orders.ListMyOrders)
		mux.HandleFunc("GET "+apiV1+"/orders/{id}", rt.Orders.GetOrder)
	}

	rt.registerAdmin(mux)
}

func (rt *Routes) registerAdmin(mux *http.ServeMux) {
	admin := middleware.AdminAuth(rt.AdminToken)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, admin(h))
	}
	prefix := apiV1 + "/admin"

	if c := rt.Catalog; c != nil {
		handle("GET "+prefix+"/products", c.AdminListProducts)
		handle("POST "+prefix+"/products", c.CreateProduct)
		handle("PUT "+prefix+"/products/{id}", c.UpdateProduct)
		handle("DELETE "+prefix+"/products/{id}", c.DeleteProduct)
		handle("PUT "+prefix+"/products/{id}/variants", c.UpsertVariants)
		handle("POST "+prefix+"/products/{id}/images", c.UploadImage)
		handle("POST "+prefix+"/categories", c.CreateCategory)
		handle("DELETE "+prefix+"/categories/{id}", c.DeleteCategory)
	}

	if o := rt.Orders; o != nil {
		handle("GET "+prefix+"/orders", o.ListOrders)
		handle("GET "+prefix+"/orders/{id}", o.AdminGetOrder)
		handle("PATCH "+prefix+"/orders/{id}/status", o.UpdateStatus)
	}

	if rt.Export != nil {
		handle("GET "+prefix+"/export/products", rt.Export.ExportExcel)
	}
	if rt.Dashboard != nil {
		handle("GET "+prefix+"/dashboard/search", rt.Dashboard.GetSearchInsights)
	}
	if rt.Import != nil {
		handle("POST "+prefix+"/import/products", rt.Import.ImportExcel)
		handle("GET "+prefix+"/import/{jobId}", rt.Import.ImportStatus)
	}
}
