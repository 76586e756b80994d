package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/TenHe10/CruchCount/internal/models"
)

var (
	// ErrValidation marks rejected input: empty barcode or name, non-positive price.
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks I/O failures opening, reading or writing the store.
	ErrStorage = errors.New("storage failure")
)

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 20

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Catalog is the durable barcode -> product registry, backed by one SQLite
// file. A Catalog is fully validated by New: opened, migrated and pinged
// before it is returned, so a caller swapping stores can keep its previous
// Catalog untouched until New succeeds.
type Catalog struct {
	db  *sql.DB
	log Log
}

// New opens the store at path, applies schema migrations and verifies the
// connection. Any failure closes the half-open handle and is reported as
// ErrStorage; the caller's current store (if any) is never affected.
func New(ctx context.Context, path, migrationsDir string, log Log) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", ErrValidation)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w: %w", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", ErrStorage, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", ErrStorage, err)
	}

	if err := applyMigrations(db, migrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Catalog store opened", zap.String("path", path))

	return &Catalog{
		db:  db,
		log: log,
	}, nil
}

func applyMigrations(db *sql.DB, dir string) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w: %w", ErrStorage, err)
	}

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w: %w", ErrStorage, err)
		}
		// tests run from a package directory, the binary from the module root
		dir = filepath.Join(cwd, "migrations")
		if _, err := os.Stat(dir); err != nil {
			dir = filepath.Join(cwd, "..", "..", "migrations")
		}
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(dir), "sqlite", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w: %w", ErrStorage, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w: %w", ErrStorage, err)
	}

	return nil
}

// Upsert inserts or fully overwrites the product row for barcode. Every call
// refreshes updated_at, including calls that repeat the current values.
func (c *Catalog) Upsert(ctx context.Context, barcode, name string, price decimal.Decimal) error {
	barcode = strings.TrimSpace(barcode)
	name = strings.TrimSpace(name)
	if barcode == "" {
		return fmt.Errorf("%w: barcode is empty", ErrValidation)
	}
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrValidation)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero, got %s", ErrValidation, price)
	}

	stmt := `
        INSERT INTO products (barcode, name, price, updated_at)
        VALUES (?, ?, ?, strftime('%Y-%m-%d %H:%M:%f', 'now', 'localtime'))
        ON CONFLICT (barcode) DO UPDATE SET
            name = excluded.name,
            price = excluded.price,
            updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now', 'localtime')
    `
	if _, err := c.db.ExecContext(ctx, stmt, barcode, name, price); err != nil {
		c.log.Error("Failed to upsert product", zap.String("barcode", barcode), zap.Error(err))
		return fmt.Errorf("upsert product: %w: %w", ErrStorage, err)
	}

	return nil
}

// Get is an exact-match point lookup. A miss is not an error: the product is
// nil and so is the error.
func (c *Catalog) Get(ctx context.Context, barcode string) (*models.Product, error) {
	stmt := `SELECT barcode, name, price, updated_at FROM products WHERE barcode = ?`

	var p models.Product
	err := c.db.QueryRowContext(ctx, stmt, barcode).Scan(&p.Barcode, &p.Name, &p.Price, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		c.log.Error("Failed to get product", zap.String("barcode", barcode), zap.Error(err))
		return nil, fmt.Errorf("get product: %w: %w", ErrStorage, err)
	}

	return &p, nil
}

// Search returns up to limit products. An empty or whitespace-only query
// lists the most recently updated products, newest first. A non-empty query
// matches barcodes by prefix and names by substring; barcode-prefix matches
// rank before name-only matches, ties broken newest first. Every call
// recomputes from current state.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if q := strings.TrimSpace(query); q == "" {
		stmt := `
            SELECT barcode, name, price, updated_at
            FROM products
            ORDER BY updated_at DESC
            LIMIT ?
        `
		rows, err = c.db.QueryContext(ctx, stmt, limit)
	} else {
		stmt := `
            SELECT barcode, name, price, updated_at
            FROM products
            WHERE barcode LIKE ? OR name LIKE ?
            ORDER BY
                CASE WHEN barcode LIKE ? THEN 0 ELSE 1 END,
                updated_at DESC
            LIMIT ?
        `
		prefix := q + "%"
		rows, err = c.db.QueryContext(ctx, stmt, prefix, "%"+q+"%", prefix, limit)
	}
	if err != nil {
		c.log.Error("Failed to search products", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("search products: %w: %w", ErrStorage, err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.Barcode, &p.Name, &p.Price, &p.UpdatedAt); err != nil {
			c.log.Error("Failed to scan product row", zap.Error(err))
			return nil, fmt.Errorf("scan product row: %w: %w", ErrStorage, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		c.log.Error("Error occurred during rows iteration", zap.Error(err))
		return nil, fmt.Errorf("iterate product rows: %w: %w", ErrStorage, err)
	}

	return products, nil
}

func (c *Catalog) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	return c.db.PingContext(ctx) == nil
}

func (c *Catalog) Close() bool {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.log.Error("Failed to close catalog store", zap.Error(err))
			return false
		}
		c.log.Info("Catalog store closed")
		return true
	}
	return false
}
