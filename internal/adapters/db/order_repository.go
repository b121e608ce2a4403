// internal/adapters/db/order_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

var orderColumns = []string{
	"id", "user_id", "status", "item_count", "subtotal", "tax", "total",
	"shipping_name", "shipping_address", "shipping_city", "shipping_postal",
	"shipping_country", "shipping_phone", "paid_at", "created_at", "updated_at",
}

type orderRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *Database, logger *slog.Logger) ports.OrderRepository {
	return &orderRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "order")),
	}
}

// Create stores the order and its items and takes their units out of stock
func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, item := range o.Items {
			if err := decrementStock(ctx, tx, item); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, user_id, status, item_count, subtotal, tax, total,
				shipping_name, shipping_address, shipping_city, shipping_postal,
				shipping_country, shipping_phone, paid_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			o.ID, o.UserID, string(o.Status), o.ItemCount, o.Subtotal, o.Tax, o.Total,
			o.Shipping.FullName, o.Shipping.Address, o.Shipping.City, o.Shipping.PostalCode,
			o.Shipping.Country, o.Shipping.Phone, o.PaidAt, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, item := range o.Items {
			batch.Queue(`
				INSERT INTO order_items (id, order_id, product_id, slug, title, color, size, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				item.ID, o.ID, item.ProductID, item.Slug, item.Title,
				item.Color, item.Size, item.Quantity, item.UnitPrice)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range o.Items {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return err
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.InfoContext(ctx, "order created",
		slog.String("order_id", o.ID.String()),
		slog.Int("items", o.ItemCount),
		slog.String("total", o.Total.StringFixed(2)))

	return nil
}

// decrementStock takes units from the matching variant, or from the product when no variant matches
func decrementStock(ctx context.Context, tx pgx.Tx, item domain.OrderItem) error {
	tag, err := tx.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $4
		WHERE product_id = $1 AND lower(color) = lower($2) AND lower(size) = lower($3) AND stock >= $4`,
		item.ProductID, item.Color, item.Size, item.Quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement variant stock: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var variantExists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM product_variants
			WHERE product_id = $1 AND lower(color) = lower($2) AND lower(size) = lower($3)
		)`, item.ProductID, item.Color, item.Size).Scan(&variantExists); err != nil {
		return fmt.Errorf("failed to check variant: %w", err)
	}
	if variantExists {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, item.Slug)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2`,
		item.ProductID, item.Quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, item.Slug)
	}
	return nil
}

// FindByID retrieves an order with its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query, args, err := squirrel.Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	order, err := scanOrder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, slug, title, color, size, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY slug, color, size`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	order.Items, err = collectRows(rows, func(row pgx.Rows) (domain.OrderItem, error) {
		var item domain.OrderItem
		err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Slug, &item.Title,
			&item.Color, &item.Size, &item.Quantity, &item.UnitPrice)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan order items: %w", err)
	}

	return &order, nil
}

// List retrieves a page of orders without items
func (r *orderRepository) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}

	filter := squirrel.And{}
	if params.UserID != "" {
		filter = append(filter, squirrel.Eq{"user_id": params.UserID})
	}
	if params.Status != "" {
		filter = append(filter, squirrel.Eq{"status": string(params.Status)})
	}

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").
		From("orders").
		Where(filter).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query, args, err := squirrel.Select(orderColumns...).
		From("orders").
		Where(filter).
		OrderBy("created_at DESC").
		Limit(uint64(params.PageSize)).
		Offset(uint64((params.Page - 1) * params.PageSize)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders, err := collectRows(rows, func(row pgx.Rows) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus sets the order status; paidAt is only written when non-nil
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, paidAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE id = $1`, id, string(status), paidAt)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	r.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id.String()),
		slog.String("status", string(status)))

	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &o.UserID, &status, &o.ItemCount, &o.Subtotal, &o.Tax, &o.Total,
		&o.Shipping.FullName, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode,
		&o.Shipping.Country, &o.Shipping.Phone, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = domain.OrderStatus(status)
	return o, err
}
