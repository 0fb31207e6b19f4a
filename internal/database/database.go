package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
)

// ErrClaimNotFound is returned when a claim id does not resolve to a row.
var ErrClaimNotFound = errors.New("claim not found")

// ErrProductNotFound is returned when a product id does not resolve to a row.
var ErrProductNotFound = errors.New("product not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			serial_number TEXT NOT NULL,
			full_name TEXT NOT NULL,
			national_id TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			city TEXT NOT NULL,
			purchase_date TEXT NOT NULL,
			product_id TEXT,
			document_url TEXT,
			status TEXT NOT NULL,
			rejection_reason TEXT,
			coupons_issued INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL,
			name TEXT NOT NULL,
			line TEXT NOT NULL,
			active INTEGER NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_serial ON claims(serial_number)`,
		`CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// InsertClaim stores a newly submitted claim.
func (db *DB) InsertClaim(claim models.Claim) error {
	query := `INSERT INTO claims (
		id, serial_number, full_name, national_id, email, phone, city,
		purchase_date, product_id, document_url, status, rejection_reason,
		coupons_issued, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(
		query,
		claim.ID,
		claim.SerialNumber,
		claim.FullName,
		claim.NationalID,
		claim.Email,
		claim.Phone,
		claim.City,
		claim.PurchaseDate.Format(time.RFC3339),
		claim.ProductID,
		claim.DocumentURL,
		string(claim.Status),
		claim.RejectionReason,
		claim.CouponsIssued,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	return nil
}

// GetClaim returns a single claim by id.
func (db *DB) GetClaim(id string) (models.Claim, error) {
	query := claimSelect + ` WHERE id = ?`

	row := db.conn.QueryRow(query, id)
	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return models.Claim{}, ErrClaimNotFound
	}
	if err != nil {
		return models.Claim{}, fmt.Errorf("failed to get claim: %w", err)
	}

	return claim, nil
}

// ListClaims returns claims, optionally filtered by status, newest first.
func (db *DB) ListClaims(status models.ClaimStatus) ([]models.Claim, error) {
	query := claimSelect
	var args []interface{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	query += ` ORDER BY created_at DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

// UpdateAdjudication writes the outcome of a decision onto a claim. The
// updated_at timestamp is bumped on every transition.
func (db *DB) UpdateAdjudication(id string, status models.ClaimStatus, rejectionReason string, couponsIssued int, now time.Time) error {
	query := `UPDATE claims SET
		status = ?,
		rejection_reason = ?,
		coupons_issued = ?,
		updated_at = ?
	WHERE id = ?`

	result, err := db.conn.Exec(
		query,
		string(status),
		rejectionReason,
		couponsIssued,
		now.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update claim adjudication: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrClaimNotFound
	}

	return nil
}

// UpsertProduct creates or updates a catalog product.
func (db *DB) UpsertProduct(product models.Product) error {
	query := `INSERT INTO products (
		id, sku, name, line, active, updated_at
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sku = excluded.sku,
		name = excluded.name,
		line = excluded.line,
		active = excluded.active,
		updated_at = excluded.updated_at`

	_, err := db.conn.Exec(
		query,
		product.ID,
		product.SKU,
		product.Name,
		product.Line,
		product.Active,
		time.Now().UTC().Format(time.RFC3339),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}

// GetProduct returns a single product by id.
func (db *DB) GetProduct(id string) (models.Product, error) {
	query := `SELECT id, sku, name, line, active, created_at, updated_at
		FROM products WHERE id = ?`

	var product models.Product
	var createdAtStr, updatedAtStr string

	err := db.conn.QueryRow(query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Line,
		&product.Active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to get product: %w", err)
	}

	product.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	product.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

	return product, nil
}

// ListProducts returns all catalog products.
func (db *DB) ListProducts() ([]models.Product, error) {
	query := `SELECT id, sku, name, line, active, created_at, updated_at
		FROM products ORDER BY name`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Line,
			&product.Active,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		product.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		product.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

const claimSelect = `SELECT id, serial_number, full_name, national_id, email,
	phone, city, purchase_date, product_id, document_url, status,
	rejection_reason, coupons_issued, created_at, updated_at FROM claims`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (models.Claim, error) {
	var claim models.Claim
	var status string
	var productID, documentURL, rejectionReason sql.NullString
	var purchaseDateStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&claim.ID,
		&claim.SerialNumber,
		&claim.FullName,
		&claim.NationalID,
		&claim.Email,
		&claim.Phone,
		&claim.City,
		&purchaseDateStr,
		&productID,
		&documentURL,
		&status,
		&rejectionReason,
		&claim.CouponsIssued,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return models.Claim{}, err
	}

	claim.Status = models.ClaimStatus(status)
	claim.ProductID = productID.String
	claim.DocumentURL = documentURL.String
	claim.RejectionReason = rejectionReason.String

	claim.PurchaseDate, err = time.Parse(time.RFC3339, purchaseDateStr)
	if err != nil {
		return models.Claim{}, fmt.Errorf("failed to parse purchase_date: %w", err)
	}
	claim.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	claim.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

	return claim, nil
}
