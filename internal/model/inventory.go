package model

// InventoryEntry is one row of a player's inventory: how many units of a
// given booba type the player owns. Rows only exist while count >= 1; a
// count reaching 0 deletes the row instead of retaining it.
type InventoryEntry struct {
	BoobaID string `json:"booba_id"`
	Count   int64  `json:"count"`
}
