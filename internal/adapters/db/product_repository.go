// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// querier is satisfied by both *Database and pgx.Tx
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

var productColumns = []string{
	"p.id", "p.slug", "p.title", "p.description", "p.tags", "p.gender",
	"p.category_id", "COALESCE(c.name, '')", "p.price", "p.stock", "p.images",
	"p.is_active", "p.created_at", "p.updated_at", "p.deleted_at",
	`COALESCE((SELECT SUM(oi.quantity) FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.product_id = p.id AND o.status <> 'cancelled'), 0)`,
	"(SELECT COUNT(*) FROM favorites f WHERE f.product_id = p.id)",
}

// productRepository implements ports.ProductRepository
type productRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *Database, logger *slog.Logger) ports.ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "product")),
	}
}

func selectProducts() squirrel.SelectBuilder {
	return squirrel.Select(productColumns...).
		From("products p").
		LeftJoin("categories c ON c.id = p.category_id").
		Where("p.deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar)
}

// SearchExact matches title, description and slug by substring, or tags by equality
func (r *productRepository) SearchExact(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	pattern := "%" + escapeLike(term) + "%"

	qb := selectProducts().
		Where("p.is_active").
		Where(squirrel.Or{
			squirrel.ILike{"p.title": pattern},
			squirrel.ILike{"p.description": pattern},
			squirrel.ILike{"p.slug": pattern},
			squirrel.Expr("EXISTS (SELECT 1 FROM unnest(p.tags) AS t(tag) WHERE lower(t.tag) = lower(?))", term),
		}).
		OrderBy("p.created_at DESC").
		Limit(uint64(limit))

	products, err := r.queryProducts(ctx, r.db, qb)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	r.logger.DebugContext(ctx, "exact search",
		slog.String("term", term),
		slog.Int("matches", len(products)))

	return products, nil
}

// ListRecent returns the newest active products
func (r *productRepository) ListRecent(ctx context.Context, limit int) ([]domain.Product, error) {
	qb := selectProducts().
		Where("p.is_active").
		OrderBy("p.created_at DESC").
		Limit(uint64(limit))

	products, err := r.queryProducts(ctx, r.db, qb)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent products: %w", err)
	}
	return products, nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findOne(ctx, squirrel.Eq{"p.id": id})
}

// FindBySlug retrieves a product by slug
func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.findOne(ctx, squirrel.Eq{"p.slug": slug})
}

func (r *productRepository) findOne(ctx context.Context, pred squirrel.Sqlizer) (*domain.Product, error) {
	products, err := r.queryProducts(ctx, r.db, selectProducts().Where(pred).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if len(products) == 0 {
		return nil, domain.ErrNotFound
	}
	return &products[0], nil
}

// List retrieves a page of products with the total count
func (r *productRepository) List(ctx context.Context, params ports.ProductListParams) ([]domain.Product, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}

	countQb := applyProductFilters(squirrel.Select("COUNT(*)").
		From("products p").
		LeftJoin("categories c ON c.id = p.category_id").
		Where("p.deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar), params)

	countSQL, countArgs, err := countQb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	qb := applyProductFilters(selectProducts(), params).
		OrderBy("p.created_at DESC").
		Limit(uint64(params.PageSize)).
		Offset(uint64((params.Page - 1) * params.PageSize))

	products, err := r.queryProducts(ctx, r.db, qb)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	return products, total, nil
}

func applyProductFilters(qb squirrel.SelectBuilder, params ports.ProductListParams) squirrel.SelectBuilder {
	if !params.IncludeInactive {
		qb = qb.Where("p.is_active")
	}
	if params.CategorySlug != "" {
		qb = qb.Where(squirrel.Eq{"c.slug": params.CategorySlug})
	}
	if params.Gender != "" {
		qb = qb.Where(squirrel.Eq{"p.gender": params.Gender})
	}
	return qb
}

// Save creates a new product with its variants
func (r *productRepository) Save(ctx context.Context, p *domain.Product) error {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO products (
				id, slug, title, description, tags, gender, category_id,
				price, stock, images, is_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

		if _, err := tx.Exec(ctx, query,
			p.ID, p.Slug, p.Title, p.Description, nonNilStrings(p.Tags), string(p.Gender), p.CategoryID,
			p.Price, p.Stock, nonNilStrings(p.Images), p.IsActive, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return err
		}

		return upsertVariants(ctx, tx, p.ID, p.Variants)
	})
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	r.logger.DebugContext(ctx, "product saved",
		slog.String("product_id", p.ID.String()),
		slog.String("slug", p.Slug))

	return nil
}

// Update modifies the product row; variants are managed through UpsertVariants
func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products SET
			slug = $2, title = $3, description = $4, tags = $5, gender = $6,
			category_id = $7, price = $8, stock = $9, is_active = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Slug, p.Title, p.Description, nonNilStrings(p.Tags), string(p.Gender),
		p.CategoryID, p.Price, p.Stock, p.IsActive, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	r.logger.DebugContext(ctx, "product updated", slog.String("product_id", p.ID.String()))
	return nil
}

// UpsertBySlug inserts the product or overwrites the one sharing its slug
func (r *productRepository) UpsertBySlug(ctx context.Context, p *domain.Product) error {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO products (
				id, slug, title, description, tags, gender, category_id,
				price, stock, images, is_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (slug) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				tags = EXCLUDED.tags,
				gender = EXCLUDED.gender,
				category_id = COALESCE(EXCLUDED.category_id, products.category_id),
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				is_active = EXCLUDED.is_active,
				updated_at = EXCLUDED.updated_at,
				deleted_at = NULL
			RETURNING id, created_at`

		if err := tx.QueryRow(ctx, query,
			p.ID, p.Slug, p.Title, p.Description, nonNilStrings(p.Tags), string(p.Gender), p.CategoryID,
			p.Price, p.Stock, nonNilStrings(p.Images), p.IsActive, p.CreatedAt, p.UpdatedAt,
		).Scan(&p.ID, &p.CreatedAt); err != nil {
			return err
		}

		return upsertVariants(ctx, tx, p.ID, p.Variants)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.Slug, err)
	}
	return nil
}

// SoftDelete hides a product from the catalog
func (r *productRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE products
		SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	r.logger.InfoContext(ctx, "product soft deleted", slog.String("product_id", id.String()))
	return nil
}

// UpsertVariants creates or updates the given variants of a product
func (r *productRepository) UpsertVariants(ctx context.Context, productID uuid.UUID, variants []domain.Variant) error {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`,
			productID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}

		if _, err := tx.Exec(ctx, `UPDATE products SET updated_at = NOW() WHERE id = $1`, productID); err != nil {
			return err
		}

		return upsertVariants(ctx, tx, productID, variants)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to upsert variants: %w", err)
	}
	return nil
}

// AddImage appends an image url to the product
func (r *productRepository) AddImage(ctx context.Context, productID uuid.UUID, url string) error {
	query := `
		UPDATE products
		SET images = array_append(images, $2), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, productID, url)
	if err != nil {
		return fmt.Errorf("failed to add image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func upsertVariants(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variants []domain.Variant) error {
	if len(variants) == 0 {
		return nil
	}

	query := `
		INSERT INTO product_variants (id, product_id, color, size, stock, sku, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, color, size) DO UPDATE SET
			stock = EXCLUDED.stock,
			sku = EXCLUDED.sku,
			price = EXCLUDED.price`

	batch := &pgx.Batch{}
	for _, v := range variants {
		id := v.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query, id, productID, v.Color, v.Size, v.Stock, v.SKU, nullDecimal(v.Price))
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range variants {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert variant: %w", err)
		}
	}
	return nil
}

// queryProducts runs a product select and attaches variants
func (r *productRepository) queryProducts(ctx context.Context, q querier, qb squirrel.SelectBuilder) ([]domain.Product, error) {
	sql, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	products, err := collectRows(rows, func(row pgx.Rows) (domain.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, err
	}

	if err := attachVariants(ctx, q, products); err != nil {
		return nil, err
	}
	return products, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var gender string
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Description, &p.Tags, &gender,
		&p.CategoryID, &p.CategoryName, &p.Price, &p.Stock, &p.Images,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		&p.Stats.OrderedQuantity, &p.Stats.FavoriteCount,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Gender = domain.Gender(gender)
	return p, nil
}

func attachVariants(ctx context.Context, q querier, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[uuid.UUID]int, len(products))
	for i := range products {
		ids[i] = products[i].ID.String()
		index[products[i].ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT id, product_id, color, size, stock, sku, price
		FROM product_variants
		WHERE product_id = ANY($1::uuid[])
		ORDER BY color, size`, ids)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}

	variants, err := collectRows(rows, scanVariant)
	if err != nil {
		return fmt.Errorf("failed to scan variants: %w", err)
	}

	for _, v := range variants {
		if i, ok := index[v.ProductID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	return nil
}

func scanVariant(row pgx.Rows) (domain.Variant, error) {
	var v domain.Variant
	var price decimal.NullDecimal
	if err := row.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Stock, &v.SKU, &price); err != nil {
		return v, err
	}
	if price.Valid {
		v.Price = &price.Decimal
	}
	return v, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
