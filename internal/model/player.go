package model

// Player holds a player's currency balance. Player rows are created lazily
// with the configured starting balance and are never deleted.
type Player struct {
	PlayerID string `json:"player_id"`
	Bubix    int64  `json:"bubix"`
}
