package handler

import (
	"encoding/json"
	"net/http"

	"booba-marketplace-api/internal/middleware"
	"booba-marketplace-api/internal/service"
	"booba-marketplace-api/pkg/apierror"
	"booba-marketplace-api/pkg/response"
)

// Action is the closed set of marketplace operations. Dispatch validates the
// action against the per-method set before any handler logic runs.
type Action string

const (
	ActionListings  Action = "listings"
	ActionInventory Action = "inventory"
	ActionSell      Action = "sell"
	ActionBuy       Action = "buy"
	ActionSync      Action = "sync"
)

// ParseReadAction maps the GET action query parameter onto the closed set.
// An empty action defaults to the listings feed.
func ParseReadAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionListings, ActionInventory:
		return Action(s), true
	case "":
		return ActionListings, true
	default:
		return "", false
	}
}

// ParseWriteAction maps the POST body action onto the closed set.
func ParseWriteAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionSell, ActionBuy, ActionSync:
		return Action(s), true
	default:
		return "", false
	}
}

// MarketplaceHandler handles marketplace HTTP requests.
type MarketplaceHandler struct {
	marketplaceService *service.MarketplaceService
}

// NewMarketplaceHandler creates a new marketplace handler.
func NewMarketplaceHandler(marketplaceService *service.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketplaceService: marketplaceService,
	}
}

// writeRequest is the POST/DELETE body. Fields are shared across actions;
// each action validates the ones it requires.
type writeRequest struct {
	Action    string           `json:"action"`
	PlayerID  string           `json:"player_id"`
	BoobaID   string           `json:"booba_id"`
	Price     int64            `json:"price"`
	ListingID int64            `json:"listing_id"`
	Inventory map[string]int64 `json:"inventory"`
	Bubix     *int64           `json:"bubix"`
}

// Read handles GET /api/marketplace, dispatching on the action query parameter.
func (h *MarketplaceHandler) Read(w http.ResponseWriter, r *http.Request) {
	action, ok := ParseReadAction(r.URL.Query().Get("action"))
	if !ok {
		response.Error(w, apierror.MethodNotAllowed())
		return
	}

	switch action {
	case ActionListings:
		h.listListings(w, r)
	case ActionInventory:
		h.getInventory(w, r)
	}
}

func (h *MarketplaceHandler) listListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.marketplaceService.Listings(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"listings": listings,
	})
}

func (h *MarketplaceHandler) getInventory(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = middleware.GetPlayerID(r.Context())
	}
	if playerID == "" {
		response.Error(w, apierror.BadRequest("player_id required"))
		return
	}

	entries, bubix, err := h.marketplaceService.Inventory(r.Context(), playerID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"inventory": entries,
		"bubix":     bubix,
	})
}

// Write handles POST /api/marketplace, dispatching on the body action field.
func (h *MarketplaceHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Body parse failures surface as internal errors, per the contract.
		response.Error(w, err)
		return
	}

	action, ok := ParseWriteAction(req.Action)
	if !ok {
		response.Error(w, apierror.MethodNotAllowed())
		return
	}

	playerID := req.PlayerID
	if playerID == "" {
		playerID = middleware.GetPlayerID(r.Context())
	}
	if playerID == "" {
		response.Error(w, apierror.BadRequest("player_id required"))
		return
	}

	switch action {
	case ActionSell:
		h.sell(w, r, playerID, req)
	case ActionBuy:
		h.buy(w, r, playerID, req)
	case ActionSync:
		h.sync(w, r, playerID, req)
	}
}

func (h *MarketplaceHandler) sell(w http.ResponseWriter, r *http.Request, playerID string, req writeRequest) {
	if req.BoobaID == "" || req.Price <= 0 {
		response.Error(w, apierror.BadRequest("booba_id and price required"))
		return
	}

	listingID, err := h.marketplaceService.Sell(r.Context(), playerID, req.BoobaID, req.Price)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"success":    true,
		"listing_id": listingID,
	})
}

func (h *MarketplaceHandler) buy(w http.ResponseWriter, r *http.Request, playerID string, req writeRequest) {
	if req.ListingID == 0 {
		response.Error(w, apierror.BadRequest("listing_id required"))
		return
	}

	boobaID, err := h.marketplaceService.Buy(r.Context(), playerID, req.ListingID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"success":  true,
		"booba_id": boobaID,
	})
}

func (h *MarketplaceHandler) sync(w http.ResponseWriter, r *http.Request, playerID string, req writeRequest) {
	if err := h.marketplaceService.Sync(r.Context(), playerID, req.Bubix, req.Inventory); err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"success": true,
	})
}

// Cancel handles DELETE /api/marketplace: removes the caller's listing and
// returns the item to their inventory.
func (h *MarketplaceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, err)
		return
	}

	playerID := req.PlayerID
	if playerID == "" {
		playerID = middleware.GetPlayerID(r.Context())
	}
	if req.ListingID == 0 || playerID == "" {
		response.Error(w, apierror.BadRequest("listing_id and player_id required"))
		return
	}

	if err := h.marketplaceService.Cancel(r.Context(), playerID, req.ListingID); err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"success": true,
	})
}
