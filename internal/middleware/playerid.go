package middleware

import (
	"context"
	"net/http"
)

// PlayerIDKey is the context key for the caller-supplied player identity.
const PlayerIDKey contextKey = "player_id"

// PlayerHeader is the header game clients use to identify the player.
// The identity is opaque and unverified; authentication is handled upstream.
const PlayerHeader = "X-Player-Id"

// PlayerID extracts the caller's player id from the X-Player-Id header.
// Handlers prefer the player_id from the query/body and fall back to this.
func PlayerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := r.Header.Get(PlayerHeader)
		if playerID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), PlayerIDKey, playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPlayerID retrieves the player id from context, if any.
func GetPlayerID(ctx context.Context) string {
	if id, ok := ctx.Value(PlayerIDKey).(string); ok {
		return id
	}
	return ""
}
