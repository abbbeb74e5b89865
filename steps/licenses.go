package steps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrLicenseNotFound is returned by Get for an unknown license id.
var ErrLicenseNotFound = errors.New("license not found")

// License is one row in the relational store.
type License struct {
	ID             int64
	CustomerID     string
	SubscriptionID string
	LicenseKey     string
	Site           string
	CreatedAt      time.Time
}

// LicenseStore persists license rows in SQLite. The schema is created on
// open. In production the same patterns apply to PostgreSQL with only
// dialect differences.
type LicenseStore struct {
	db *sql.DB
}

// OpenLicenseStore opens (or creates) the license database at dbPath.
// Use ":memory:" for an in-memory database.
func OpenLicenseStore(dbPath string) (*LicenseStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open license database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS licenses (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id     TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			license_key     TEXT NOT NULL,
			site            TEXT NOT NULL,
			created_at      TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_licenses_customer ON licenses(customer_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create license schema: %w", err)
	}

	return &LicenseStore{db: db}, nil
}

// Insert adds a license row and returns its generated identifier.
func (s *LicenseStore) Insert(ctx context.Context, license License) (int64, error) {
	createdAt := license.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO licenses (customer_id, subscription_id, license_key, site, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		license.CustomerID, license.SubscriptionID, license.LicenseKey, license.Site, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert license: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert license: %w", err)
	}
	return id, nil
}

// Delete removes a license row by primary key. Deleting an absent row is
// not an error.
func (s *LicenseStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM licenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete license %d: %w", id, err)
	}
	return nil
}

// Get retrieves a license row by primary key.
func (s *LicenseStore) Get(ctx context.Context, id int64) (*License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, subscription_id, license_key, site, created_at
		 FROM licenses WHERE id = ?`, id)

	var license License
	err := row.Scan(&license.ID, &license.CustomerID, &license.SubscriptionID,
		&license.LicenseKey, &license.Site, &license.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get license %d: %w", id, err)
	}
	return &license, nil
}

// Close releases the underlying database handle.
func (s *LicenseStore) Close() error {
	return s.db.Close()
}
