package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

func (t *txRepository) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.CustomerSummary, error) {
	var (
		c     domain.CustomerSummary
		phone sql.NullString
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, email, phone FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	c.Phone = phone.String
	return &c, nil
}

// GetCatalogProduct reads a product and the taxonomy rows copied into snapshots. The read
// takes no row lock; the guarded reservation later in the transaction is what decides.
func (t *txRepository) GetCatalogProduct(ctx context.Context, id uuid.UUID) (*domain.CatalogProduct, error) {
	var (
		p         domain.CatalogProduct
		capID     uuid.NullUUID
		capName   sql.NullString
		capVolume sql.NullInt64
	)
	query := `SELECT p.id, p.name, p.slug, p.description, p.price, p.stock_quantity, p.is_active, p.is_deleted,
	                 cap.id, cap.name, cap.volume_ml
	          FROM products p LEFT JOIN capacities cap ON cap.id = p.capacity_id
	          WHERE p.id = $1`
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.StockQuantity,
		&p.IsActive,
		&p.IsDeleted,
		&capID,
		&capName,
		&capVolume,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	if capID.Valid {
		p.Capacity = &domain.SnapshotCapacity{ID: capID.UUID, Name: capName.String, VolumeMl: int(capVolume.Int64)}
	}

	if p.Colors, err = t.productColors(ctx, id); err != nil {
		return nil, err
	}
	if p.Categories, err = t.productCategories(ctx, id); err != nil {
		return nil, err
	}
	if p.ImageURLs, err = t.productImages(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txRepository) productColors(ctx context.Context, productID uuid.UUID) ([]domain.SnapshotColor, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT c.id, c.name, c.hex_code
		 FROM product_colors pc JOIN colors c ON c.id = pc.color_id
		 WHERE pc.product_id = $1 ORDER BY c.name`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product colors: %w", err)
	}
	defer rows.Close()

	colors := make([]domain.SnapshotColor, 0)
	for rows.Next() {
		var c domain.SnapshotColor
		if err := rows.Scan(&c.ID, &c.Name, &c.HexCode); err != nil {
			return nil, fmt.Errorf("scan product color: %w", err)
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

func (t *txRepository) productCategories(ctx context.Context, productID uuid.UUID) ([]domain.SnapshotCategory, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT c.id, c.name, c.slug
		 FROM product_categories pc JOIN categories c ON c.id = pc.category_id
		 WHERE pc.product_id = $1 ORDER BY c.name`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.SnapshotCategory, 0)
	for rows.Next() {
		var c domain.SnapshotCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan product category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (t *txRepository) productImages(ctx context.Context, productID uuid.UUID) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT url FROM product_images WHERE product_id = $1 ORDER BY sort_order, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product images: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}
