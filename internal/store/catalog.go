package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// CatalogStore reads products owned by the catalog subsystem. The only write
// it performs is the conditional stock decrement taken at order time.
type CatalogStore struct {
	*Store
}

// NewCatalogStore wraps the catalog database.
func NewCatalogStore(s *Store) *CatalogStore {
	return &CatalogStore{Store: s}
}

type productRow struct {
	ID     string          `db:"id"`
	Name   string          `db:"name"`
	Price  decimal.Decimal `db:"price"`
	Stock  int             `db:"stock"`
	Status string          `db:"status"`
	Images pq.StringArray  `db:"images"`
}

func (r productRow) toSnapshot() models.ProductSnapshot {
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return models.ProductSnapshot{
		ID:     r.ID,
		Name:   r.Name,
		Price:  r.Price,
		Stock:  r.Stock,
		Status: r.Status,
		Images: images,
	}
}

// GetProductsByIDs retrieves multiple products by IDs. Missing ids are absent
// from the result.
func (c *CatalogStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.ProductSnapshot, error) {
	if len(ids) == 0 {
		return []models.ProductSnapshot{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, name, price, stock, status, COALESCE(images, '{}') AS images FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = c.db.Rebind(query)

	var rows []productRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select products: %w", err)
	}

	products := make([]models.ProductSnapshot, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toSnapshot())
	}
	return products, nil
}

// DecrementStock takes quantity from an active product only if enough stock
// remains, in one statement. It reports false when the guard fails.
func (c *CatalogStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1
		 WHERE id = $2 AND status = $3 AND stock >= $1`,
		quantity, productID, models.ProductStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RestoreStock puts back stock taken by DecrementStock (compensation)
func (c *CatalogStore) RestoreStock(ctx context.Context, productID string, quantity int) error {
	_, err := c.db.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1 WHERE id = $2",
		quantity, productID)
	return err
}
