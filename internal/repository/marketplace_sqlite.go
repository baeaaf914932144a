package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"booba-marketplace-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteMarketplaceRepository implements MarketplaceRepository using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteMarketplaceRepository struct {
	db            *sql.DB
	startingBubix int64
	mu            sync.RWMutex
}

// NewSQLiteMarketplaceRepository creates a new SQLite marketplace repository.
// dbPath is the path to the SQLite database file (e.g., "./data/marketplace.db")
func NewSQLiteMarketplaceRepository(dbPath string, startingBubix int64) (*SQLiteMarketplaceRepository, error) {
	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteMarketplaceRepository] Initialized with database: %s", dbPath)
	return &SQLiteMarketplaceRepository{db: db, startingBubix: startingBubix}, nil
}

// createSQLiteTables creates the players, inventory and marketplace tables.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		bubix INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS inventory (
		player_id TEXT NOT NULL,
		booba_id TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (player_id, booba_id)
	);
	CREATE TABLE IF NOT EXISTS marketplace (
		listing_id INTEGER PRIMARY KEY AUTOINCREMENT,
		seller_id TEXT NOT NULL,
		booba_id TEXT NOT NULL,
		price INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_marketplace_created ON marketplace(created_at);
	CREATE INDEX IF NOT EXISTS idx_marketplace_seller ON marketplace(seller_id);
	`
	_, err := db.Exec(query)
	return err
}

// EnsurePlayer idempotently creates the player row with the starting balance.
func (r *SQLiteMarketplaceRepository) EnsurePlayer(ctx context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO players (player_id, bubix)
		VALUES (?, ?)
		ON CONFLICT(player_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, playerID, r.startingBubix)
	if err != nil {
		return fmt.Errorf("failed to ensure player: %w", err)
	}
	return nil
}

// ListListings returns all listings, most recent first.
func (r *SQLiteMarketplaceRepository) ListListings(ctx context.Context) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
func (r *SQLiteMarketplaceRepository) GetInventory(ctx context.Context, playerID string) ([]model.InventoryEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
func (r *SQLiteMarketplaceRepository) CreateListing(ctx context.Context, sellerID, boobaID string, price int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	err = tx.QueryRowContext(ctx,
		`SELECT count FROM inventory WHERE player_id = ? AND booba_id = ?`,
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
		`INSERT INTO marketplace (seller_id, booba_id, price, created_at) VALUES (?, ?, ?, ?)`,
		sellerID, boobaID, price, time.Now().UTC())
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
func (r *SQLiteMarketplaceRepository) PurchaseListing(ctx context.Context, buyerID string, listingID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sellerID, boobaID string
	var price int64
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, booba_id, price FROM marketplace WHERE listing_id = ?`,
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
		`SELECT bubix FROM players WHERE player_id = ?`, buyerID).Scan(&bubix)
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
		ON CONFLICT(player_id, booba_id) DO UPDATE SET count = count + 1`,
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
func (r *SQLiteMarketplaceRepository) CancelListing(ctx context.Context, playerID string, listingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sellerID, boobaID string
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, booba_id FROM marketplace WHERE listing_id = ?`,
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
		ON CONFLICT(player_id, booba_id) DO UPDATE SET count = count + 1`,
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
func (r *SQLiteMarketplaceRepository) SyncInventory(ctx context.Context, playerID string, bubix int64, items map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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
			ON CONFLICT(player_id, booba_id) DO UPDATE SET count = excluded.count`,
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
func (r *SQLiteMarketplaceRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
func (r *SQLiteMarketplaceRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteMarketplaceRepository implements MarketplaceRepository
var _ MarketplaceRepository = (*SQLiteMarketplaceRepository)(nil)
