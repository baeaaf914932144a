package model

import "time"

// Listing is an active sale offer of one booba unit at a fixed price.
// The listed unit is held in escrow: it was debited from the seller's
// inventory when the listing was created.
type Listing struct {
	ListingID int64     `json:"listing_id"`
	SellerID  string    `json:"seller_id"`
	BoobaID   string    `json:"booba_id"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
