package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"booba-marketplace-api/internal/cache"
	"booba-marketplace-api/internal/model"
	"booba-marketplace-api/internal/repository"
	"booba-marketplace-api/pkg/apierror"
)

// listingsCacheKey is the cache key for the full listings feed.
const listingsCacheKey = "listings"

// Options configures a MarketplaceService.
type Options struct {
	// ListingsTTL bounds staleness of the cached listings feed.
	ListingsTTL time.Duration

	// StartingBubix is the fallback currency value for sync requests that
	// omit bubix. It matches the balance granted to new players.
	StartingBubix int64
}

// MarketplaceService implements the marketplace business flow on top of a
// repository, with an optional read cache for the listings feed. Every write
// action runs the idempotent ensure-player step as its own committed step
// before the action transaction.
type MarketplaceService struct {
	repo  repository.MarketplaceRepository
	cache cache.Cache
	opts  Options
}

// NewMarketplaceService creates a new marketplace service.
// cache may be nil to disable listings caching.
func NewMarketplaceService(repo repository.MarketplaceRepository, c cache.Cache, opts Options) *MarketplaceService {
	if repo == nil {
		return nil
	}
	if opts.ListingsTTL == 0 {
		opts.ListingsTTL = 10 * time.Second
	}
	if opts.StartingBubix == 0 {
		opts.StartingBubix = 200
	}
	return &MarketplaceService{repo: repo, cache: c, opts: opts}
}

// StartingBubix returns the configured starting balance.
func (s *MarketplaceService) StartingBubix() int64 {
	return s.opts.StartingBubix
}

// Listings returns all listings, most recent first, serving from cache when
// the feed is fresh.
func (s *MarketplaceService) Listings(ctx context.Context) ([]model.Listing, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, listingsCacheKey); err == nil {
			var listings []model.Listing
			if err := json.Unmarshal(data, &listings); err == nil {
				return listings, nil
			}
		}
	}

	listings, err := s.repo.ListListings(ctx)
	if err != nil {
		return nil, apierror.InternalError(err.Error())
	}

	if s.cache != nil {
		if data, err := json.Marshal(listings); err == nil {
			if err := s.cache.Set(ctx, listingsCacheKey, data, s.opts.ListingsTTL); err != nil {
				log.Printf("[MarketplaceService] listings cache set failed: %v", err)
			}
		}
	}

	return listings, nil
}

// Inventory returns the player's inventory rows and balance (0 if the player
// record does not exist).
func (s *MarketplaceService) Inventory(ctx context.Context, playerID string) ([]model.InventoryEntry, int64, error) {
	entries, bubix, err := s.repo.GetInventory(ctx, playerID)
	if err != nil {
		return nil, 0, apierror.InternalError(err.Error())
	}
	return entries, bubix, nil
}

// Sell lists one unit of the caller's item for sale and returns the new
// listing id.
func (s *MarketplaceService) Sell(ctx context.Context, playerID, boobaID string, price int64) (int64, error) {
	if err := s.ensurePlayer(ctx, playerID); err != nil {
		return 0, err
	}

	listingID, err := s.repo.CreateListing(ctx, playerID, boobaID, price)
	if err != nil {
		return 0, mapDomainError(err)
	}

	s.invalidateListings(ctx)
	return listingID, nil
}

// Buy purchases a listing for the caller and returns the acquired booba id.
func (s *MarketplaceService) Buy(ctx context.Context, playerID string, listingID int64) (string, error) {
	if err := s.ensurePlayer(ctx, playerID); err != nil {
		return "", err
	}

	boobaID, err := s.repo.PurchaseListing(ctx, playerID, listingID)
	if err != nil {
		return "", mapDomainError(err)
	}

	s.invalidateListings(ctx)
	return boobaID, nil
}

// Sync overwrites the player's balance and inventory counts from a client
// snapshot. A nil bubix falls back to the starting balance.
func (s *MarketplaceService) Sync(ctx context.Context, playerID string, bubix *int64, items map[string]int64) error {
	if err := s.ensurePlayer(ctx, playerID); err != nil {
		return err
	}

	value := s.opts.StartingBubix
	if bubix != nil {
		value = *bubix
	}

	if err := s.repo.SyncInventory(ctx, playerID, value, items); err != nil {
		return apierror.InternalError(err.Error())
	}
	return nil
}

// Cancel removes the caller's listing and returns the item to their inventory.
func (s *MarketplaceService) Cancel(ctx context.Context, playerID string, listingID int64) error {
	if err := s.repo.CancelListing(ctx, playerID, listingID); err != nil {
		return mapDomainError(err)
	}

	s.invalidateListings(ctx)
	return nil
}

// Stats returns store row counts for the status endpoint.
func (s *MarketplaceService) Stats(ctx context.Context) (map[string]interface{}, error) {
	return s.repo.Stats(ctx)
}

// ensurePlayer runs the idempotent player-creation step. It commits on its
// own; a failure between this step and the action transaction leaves only a
// harmless default player row behind.
func (s *MarketplaceService) ensurePlayer(ctx context.Context, playerID string) error {
	if err := s.repo.EnsurePlayer(ctx, playerID); err != nil {
		return apierror.InternalError(fmt.Sprintf("failed to ensure player: %v", err))
	}
	return nil
}

// invalidateListings drops the cached feed after a successful write. A cache
// failure here only extends staleness within the TTL, so it is logged and
// swallowed.
func (s *MarketplaceService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, listingsCacheKey); err != nil {
		log.Printf("[MarketplaceService] listings cache invalidation failed: %v", err)
	}
}

// mapDomainError converts repository sentinel errors into API errors with
// the wire-contract messages.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotEnoughItems):
		return apierror.BadRequest("Not enough items")
	case errors.Is(err, repository.ErrNotEnoughBubix):
		return apierror.BadRequest("Not enough bubix")
	case errors.Is(err, repository.ErrOwnListing):
		return apierror.BadRequest("Cannot buy your own listing")
	case errors.Is(err, repository.ErrListingNotFound):
		return apierror.NotFound("Listing not found")
	case errors.Is(err, repository.ErrNotSeller):
		return apierror.Forbidden("Not your listing")
	default:
		return apierror.InternalError(err.Error())
	}
}
