package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"booba-marketplace-api/internal/handler"
	"booba-marketplace-api/internal/repository"
	"booba-marketplace-api/internal/router"
	"booba-marketplace-api/internal/service"
)

func testServer(t *testing.T) (*httptest.Server, *service.MarketplaceService) {
	t.Helper()
	repo, err := repository.NewSQLiteMarketplaceRepository(filepath.Join(t.TempDir(), "marketplace.db"), 200)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := service.NewMarketplaceService(repo, nil, service.Options{
		ListingsTTL:   time.Minute,
		StartingBubix: 200,
	})

	r := router.New(router.Config{
		Handler:            handler.New(repo, "sqlite", "test"),
		MarketplaceHandler: handler.NewMarketplaceHandler(svc),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	decoded := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestPreflight(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodOptions, srv.URL+"/api/marketplace", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListListingsEmpty(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/marketplace", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	listings, ok := body["listings"].([]interface{})
	if !ok {
		t.Fatalf("body = %v, want listings array", body)
	}
	if len(listings) != 0 {
		t.Fatalf("listings = %d, want 0", len(listings))
	}
}

func TestInventoryRequiresPlayerID(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/marketplace?action=inventory", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "player_id required" {
		t.Fatalf("error = %v, want %q", body["error"], "player_id required")
	}
}

func TestInventoryUnknownPlayer(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/marketplace?action=inventory&player_id=ghost", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["bubix"].(float64) != 0 {
		t.Fatalf("bubix = %v, want 0", body["bubix"])
	}
	if inv := body["inventory"].([]interface{}); len(inv) != 0 {
		t.Fatalf("inventory = %v, want empty", inv)
	}
}

func TestUnknownReadAction(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/marketplace?action=bogus", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if body["error"] != "Method not allowed" {
		t.Fatalf("error = %v, want %q", body["error"], "Method not allowed")
	}
}

func TestWriteRequiresPlayerID(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "sell", "booba_id": "booba-red", "price": 10,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "player_id required" {
		t.Fatalf("error = %v, want %q", body["error"], "player_id required")
	}
}

func TestPlayerIDHeaderFallback(t *testing.T) {
	srv, _ := testServer(t)

	data, _ := json.Marshal(map[string]interface{}{
		"action":    "sync",
		"inventory": map[string]int64{"itemA": 1},
		"bubix":     300,
	})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/marketplace", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Player-Id", "header-player")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// The synced state must be attributed to the header identity.
	resp2, body := doJSON(t, http.MethodGet, srv.URL+"/api/marketplace?action=inventory&player_id=header-player", nil)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}
	if body["bubix"].(float64) != 300 {
		t.Fatalf("bubix = %v, want 300", body["bubix"])
	}
}

func TestSellValidation(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "sell", "player_id": "seller",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "booba_id and price required" {
		t.Fatalf("error = %v, want %q", body["error"], "booba_id and price required")
	}
}

func TestUnknownWriteAction(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "steal", "player_id": "p1",
	})
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMalformedBodyIsInternalError(t *testing.T) {
	srv, _ := testServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/marketplace", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSellBuyCancelFlow(t *testing.T) {
	srv, _ := testServer(t)

	// Seed the seller with one item via sync.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action":    "sync",
		"player_id": "seller",
		"inventory": map[string]int64{"booba-red": 2},
		"bubix":     100,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", resp.StatusCode)
	}

	// Sell one unit.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "sell", "player_id": "seller", "booba_id": "booba-red", "price": 50,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell status = %d, want 200", resp.StatusCode)
	}
	if body["success"] != true {
		t.Fatalf("sell body = %v, want success", body)
	}
	listingID := int64(body["listing_id"].(float64))

	// The feed now carries the listing.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/marketplace?action=listings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listings status = %d, want 200", resp.StatusCode)
	}
	listings := body["listings"].([]interface{})
	if len(listings) != 1 {
		t.Fatalf("listings = %d, want 1", len(listings))
	}

	// Buyer (fresh player, granted 200 by the ensure step) buys it.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "buy", "player_id": "buyer", "listing_id": listingID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy status = %d, want 200", resp.StatusCode)
	}
	if body["booba_id"] != "booba-red" {
		t.Fatalf("buy body = %v, want booba-red", body)
	}

	// Buyer inventory and balance reflect the purchase.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/marketplace?action=inventory&player_id=buyer", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inventory status = %d, want 200", resp.StatusCode)
	}
	if body["bubix"].(float64) != 150 {
		t.Fatalf("buyer bubix = %v, want 150", body["bubix"])
	}

	// Seller lists the second unit, then cancels it.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "sell", "player_id": "seller", "booba_id": "booba-red", "price": 75,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second sell status = %d, want 200", resp.StatusCode)
	}
	secondID := int64(body["listing_id"].(float64))

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/marketplace", map[string]interface{}{
		"player_id": "seller", "listing_id": secondID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", resp.StatusCode)
	}
	if body["success"] != true {
		t.Fatalf("cancel body = %v, want success", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/marketplace", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listings status = %d, want 200", resp.StatusCode)
	}
	if got := body["listings"].([]interface{}); len(got) != 0 {
		t.Fatalf("listings after cancel = %d, want 0", len(got))
	}
}

func TestBuyInsufficientBubix(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action":    "sync",
		"player_id": "seller",
		"inventory": map[string]int64{"booba-red": 1},
		"bubix":     100,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "sell", "player_id": "seller", "booba_id": "booba-red", "price": 9000,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell status = %d", resp.StatusCode)
	}
	listingID := int64(body["listing_id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "buy", "player_id": "buyer", "listing_id": listingID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "Not enough bubix" {
		t.Fatalf("error = %v, want %q", body["error"], "Not enough bubix")
	}
}

func TestCancelValidationAndOwnership(t *testing.T) {
	srv, _ := testServer(t)

	// Missing fields
	resp, body := doJSON(t, http.MethodDelete, srv.URL+"/api/marketplace", map[string]interface{}{
		"player_id": "seller",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "listing_id and player_id required" {
		t.Fatalf("error = %v", body["error"])
	}

	// Unknown listing
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/marketplace", map[string]interface{}{
		"player_id": "seller", "listing_id": 999,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	// Ownership mismatch
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action":    "sync",
		"player_id": "seller",
		"inventory": map[string]int64{"booba-red": 1},
		"bubix":     100,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/marketplace", map[string]interface{}{
		"action": "sell", "player_id": "seller", "booba_id": "booba-red", "price": 10,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell status = %d", resp.StatusCode)
	}
	listingID := int64(body["listing_id"].(float64))

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/marketplace", map[string]interface{}{
		"player_id": "intruder", "listing_id": listingID,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body["error"] != "Not your listing" {
		t.Fatalf("error = %v, want %q", body["error"], "Not your listing")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/marketplace", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if body["error"] != "Method not allowed" {
		t.Fatalf("error = %v, want %q", body["error"], "Method not allowed")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["service"] != "booba-marketplace-api" || body["store_type"] != "sqlite" {
		t.Fatalf("body = %v", body)
	}
}
