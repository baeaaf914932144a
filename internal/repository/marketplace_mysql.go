package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"booba-marketplace-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLMarketplaceRepository implements MarketplaceRepository using MySQL.
type MySQLMarketplaceRepository struct {
	db            *sql.DB
	startingBubix int64
}

// NewMySQLMarketplaceRepository creates a new MySQL marketplace repository.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLMarketplaceRepository(dsn string, startingBubix int64) (*MySQLMarketplaceRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("[MySQLMarketplaceRepository] Initialized")
	return &MySQLMarketplaceRepository{db: db, startingBubix: startingBubix}, nil
}

func createMySQLTables(db *sql.DB) error {
	// MySQL does not accept multiple statements per Exec by default.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS players (
			player_id VARCHAR(128) PRIMARY KEY,
			bubix BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			player_id VARCHAR(128) NOT NULL,
			booba_id VARCHAR(128) NOT NULL,
			count BIGINT NOT NULL,
			PRIMARY KEY (player_id, booba_id)
		)`,
		`CREATE TABLE IF NOT EXISTS marketplace (
			listing_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			seller_id VARCHAR(128) NOT NULL,
			booba_id VARCHAR(128) NOT NULL,
			price BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_marketplace_created (created_at),
			INDEX idx_marketplace_seller (seller_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// EnsurePlayer idempotently creates the player row with the starting balance.
func (r *MySQLMarketplaceRepository) EnsurePlayer(ctx context.Context, playerID string) error {
	query := `INSERT IGNORE INTO players (player_id, bubix) VALUES (?, ?)`

	_, err := r.db.ExecContext(ctx, query, playerID, r.startingBubix)
	if err != nil {
		return fmt.Errorf("failed to ensure player: %w", err)
	}
	return nil
}

// ListListings returns all listings, most recent first.
func (r *MySQLMarketplaceRepository) ListListings(ctx context.Context) ([]model.Listing, error) {
	query := `
		SELECT listing_id, seller_id, booba_id, price, created_at
		FROM marketplace
		ORDER BY created_at DESC, listing_id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		var l model.Listing
		if err := rows.Scan(&l.ListingID, &l.SellerID, &l.BoobaID, &l.Price, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetInventory returns the player's inventory rows and currency balance.
func (r *MySQLMarketplaceRepository) GetInventory(ctx context.Context, playerID string) ([]model.InventoryEntry, int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT booba_id, count FROM inventory WHERE player_id = ? ORDER BY booba_id`, playerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get inventory: %w", err)
	}
	defer rows.Close()

	entries := []model.InventoryEntry{}
	for rows.Next() {
		var e model.InventoryEntry
		if err := rows.Scan(&e.BoobaID, &e.Count); err != nil {
			return nil, 0, fmt.Errorf("failed to scan inventory entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var bubix int64
	err = r.db.QueryRowContext(ctx,
		`SELECT bubix FROM players WHERE player_id = ?`, playerID).Scan(&bubix)
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return entries, bubix, nil
}

// CreateListing debits one unit from the seller's inventory and inserts a
// listing inside a single transaction.
func (r *MySQLMarketplaceRepository) CreateListing(ctx context.Context, sellerID, boobaID string, price int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	err = tx.QueryRowContext(ctx,
		`SELECT count FROM inventory WHERE player_id = ? AND booba_id = ? FOR UPDATE`,
		sellerID, boobaID).Scan(&count)
	if err == sql.ErrNoRows || (err == nil && count < 1) {
		return 0, ErrNotEnoughItems
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read inventory: %w", err)
	}

	if count == 1 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM inventory WHERE player_id = ? AND booba_id = ?`, sellerID, boobaID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE inventory SET count = count - 1 WHERE player_id = ? AND booba_id = ?`, sellerID, boobaID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit inventory: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO marketplace (seller_id, booba_id, price) VALUES (?, ?, ?)`,
		sellerID, boobaID, price)
	if err != nil {
		return 0, fmt.Errorf("failed to insert listing: %w", err)
	}
	listingID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read listing id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return listingID, nil
}

// PurchaseListing executes the buy transaction: zero-sum currency transfer,
// inventory grant, listing removal.
func (r *MySQLMarketplaceRepository) PurchaseListing(ctx context.Context, buyerID string, listingID int64) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sellerID, boobaID string
	var price int64
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, booba_id, price FROM marketplace WHERE listing_id = ? FOR UPDATE`,
		listingID).Scan(&sellerID, &boobaID, &price)
	if err == sql.ErrNoRows {
		return "", ErrListingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read listing: %w", err)
	}

	if sellerID == buyerID {
		return "", ErrOwnListing
	}

	var bubix int64
	err = tx.QueryRowContext(ctx,
		`SELECT bubix FROM players WHERE player_id = ? FOR UPDATE`, buyerID).Scan(&bubix)
	if err == sql.ErrNoRows || (err == nil && bubix < price) {
		return "", ErrNotEnoughBubix
	}
	if err != nil {
		return "", fmt.Errorf("failed to read balance: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE players SET bubix = bubix - ? WHERE player_id = ?`, price, buyerID); err != nil {
		return "", fmt.Errorf("failed to debit buyer: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE players SET bubix = bubix + ? WHERE player_id = ?`, price, sellerID); err != nil {
		return "", fmt.Errorf("failed to credit seller: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (player_id, booba_id, count)
		VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE count = count + 1`,
		buyerID, boobaID); err != nil {
		return "", fmt.Errorf("failed to grant item: %w", err)
	}

	// A zero-row delete means a concurrent buyer already took the listing.
	res, err := tx.ExecContext(ctx,
		`DELETE FROM marketplace WHERE listing_id = ?`, listingID)
	if err != nil {
		return "", fmt.Errorf("failed to delete listing: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", ErrListingNotFound
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return boobaID, nil
}

// CancelListing deletes the listing and returns the item to the seller.
func (r *MySQLMarketplaceRepository) CancelListing(ctx context.Context, playerID string, listingID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sellerID, boobaID string
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, booba_id FROM marketplace WHERE listing_id = ? FOR UPDATE`,
		listingID).Scan(&sellerID, &boobaID)
	if err == sql.ErrNoRows {
		return ErrListingNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read listing: %w", err)
	}

	if sellerID != playerID {
		return ErrNotSeller
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM marketplace WHERE listing_id = ?`, listingID); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (player_id, booba_id, count)
		VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE count = count + 1`,
		playerID, boobaID); err != nil {
		return fmt.Errorf("failed to restore item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SyncInventory overwrites the player's balance and per-item counts.
// Items with count <= 0 are skipped; stale rows absent from the payload are
// intentionally left in place to match the established client contract.
func (r *MySQLMarketplaceRepository) SyncInventory(ctx context.Context, playerID string, bubix int64, items map[string]int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		`UPDATE players SET bubix = ? WHERE player_id = ?`, bubix, playerID); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}

	for boobaID, count := range items {
		if count <= 0 {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (player_id, booba_id, count)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE count = VALUES(count)`,
			playerID, boobaID, count); err != nil {
			return fmt.Errorf("failed to sync item %s: %w", boobaID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats returns row counts for the status endpoint.
func (r *MySQLMarketplaceRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	for name, query := range map[string]string{
		"players":        `SELECT COUNT(*) FROM players`,
		"listings":       `SELECT COUNT(*) FROM marketplace`,
		"inventory_rows": `SELECT COUNT(*) FROM inventory`,
	} {
		var count int64
		if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, err
		}
		stats[name] = count
	}
	return stats, nil
}

// Close closes the database connection.
func (r *MySQLMarketplaceRepository) Close() error {
	return r.db.Close()
}

// Ensure MySQLMarketplaceRepository implements MarketplaceRepository
var _ MarketplaceRepository = (*MySQLMarketplaceRepository)(nil)
