package repository

import (
	"context"
	"errors"

	"booba-marketplace-api/internal/model"
)

// Domain errors returned by marketplace repositories. The service layer maps
// these to HTTP error responses.
var (
	// ErrListingNotFound indicates the listing does not exist (or was bought
	// by a concurrent purchaser before this transaction committed).
	ErrListingNotFound = errors.New("listing not found")

	// ErrNotEnoughItems indicates the seller holds no units of the item.
	ErrNotEnoughItems = errors.New("not enough items")

	// ErrNotEnoughBubix indicates the buyer's balance is below the price.
	ErrNotEnoughBubix = errors.New("not enough bubix")

	// ErrOwnListing indicates a player attempted to buy their own listing.
	ErrOwnListing = errors.New("cannot buy own listing")

	// ErrNotSeller indicates a cancel attempt by someone other than the seller.
	ErrNotSeller = errors.New("listing belongs to another seller")
)

// MarketplaceRepository defines marketplace data access methods. All mutating
// operations execute as a single committed transaction; EnsurePlayer is its
// own committed step, run by the service before each write action.
type MarketplaceRepository interface {
	// EnsurePlayer idempotently creates the player row with the starting
	// balance. A no-op if the player already exists.
	EnsurePlayer(ctx context.Context, playerID string) error

	// ListListings returns all listings, most recent first.
	ListListings(ctx context.Context) ([]model.Listing, error)

	// GetInventory returns the player's inventory rows and currency balance.
	// The balance is 0 if no player row exists.
	GetInventory(ctx context.Context, playerID string) ([]model.InventoryEntry, int64, error)

	// CreateListing debits one unit of boobaID from the seller's inventory
	// (deleting the row at count 0) and inserts a listing, returning the
	// generated listing id. Returns ErrNotEnoughItems if the seller holds
	// no units.
	CreateListing(ctx context.Context, sellerID, boobaID string, price int64) (int64, error)

	// PurchaseListing transfers the listing price from buyer to seller,
	// grants the item to the buyer and deletes the listing, returning the
	// acquired booba id. Returns ErrListingNotFound, ErrOwnListing or
	// ErrNotEnoughBubix.
	PurchaseListing(ctx context.Context, buyerID string, listingID int64) (string, error)

	// CancelListing deletes the listing and returns the item to the seller's
	// inventory. Returns ErrListingNotFound or ErrNotSeller.
	CancelListing(ctx context.Context, playerID string, listingID int64) error

	// SyncInventory overwrites the player's balance and the counts of every
	// payload item with count > 0. Items with count <= 0 are skipped; rows
	// absent from the payload are left untouched.
	SyncInventory(ctx context.Context, playerID string, bubix int64, items map[string]int64) error

	// Stats returns row counts for the status endpoint.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}
