// internal/core/domain/order.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// CanTransitionTo reports whether the status may move to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ShippingAddress is where an order is delivered
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Validate checks required address fields
func (a *ShippingAddress) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	if strings.TrimSpace(a.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("city is required")
	}
	if strings.TrimSpace(a.Country) == "" {
		return fmt.Errorf("country is required")
	}
	return nil
}

// Order is a placed order
type Order struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Status    OrderStatus     `json:"status"`
	Items     []OrderItem     `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Shipping  ShippingAddress `json:"shipping"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderItem is one purchased line of an order
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal returns quantity * unit price
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotals sets item count, subtotal, tax and total for the given tax rate
func (o *Order) CalculateTotals(taxRate decimal.Decimal) {
	o.ItemCount = 0
	o.Subtotal = decimal.Zero
	for _, item := range o.Items {
		o.ItemCount += item.Quantity
		o.Subtotal = o.Subtotal.Add(item.LineTotal())
	}
	o.Tax = o.Subtotal.Mul(taxRate).Round(2)
	o.Total = o.Subtotal.Add(o.Tax)
}

// Validate performs domain validation on the order
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive for %s", item.Slug)
		}
	}
	return o.Shipping.Validate()
}

// PrepareForStorage fills ids and timestamps
func (o *Order) PrepareForStorage() {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	for i := range o.Items {
		if o.Items[i].ID == uuid.Nil {
			o.Items[i].ID = uuid.New()
		}
		o.Items[i].OrderID = o.ID
	}
}
