package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "product not found: %s", sku)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActiveProducts retrieves all active products
func (s *Store) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE is_active ORDER BY id")
	return products, err
}

// RestockProduct increments inventory under a row lock (manager path).
func (s *Store) RestockProduct(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return apperr.Newf(apperr.Validation, "restock quantity must be positive, got %d", qty)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET inventory_quantity = inventory_quantity + $1, updated_at = NOW() WHERE id = $2",
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to restock product: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.Newf(apperr.NotFound, "product not found: %d", productID)
	}
	return nil
}

// reserveInventoryTx decrements inventory for one line inside an open
// transaction. The row is locked before the quantity is read so two
// concurrent checkouts cannot both observe sufficient stock.
func reserveInventoryTx(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	var available int
	err := tx.GetContext(ctx, &available,
		"SELECT inventory_quantity FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return apperr.Newf(apperr.NotFound, "product not found: %d", productID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}

	if available < qty {
		return &apperr.InsufficientInventoryError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET inventory_quantity = inventory_quantity - $1, updated_at = NOW() WHERE id = $2",
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory for product %d: %w", productID, err)
	}
	return nil
}
