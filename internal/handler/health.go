package handler

import (
	"net/http"
	"runtime"
	"time"

	"booba-marketplace-api/internal/repository"
	"booba-marketplace-api/pkg/response"
)

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	repo      repository.MarketplaceRepository
	storeType string
	version   string
	startTime time.Time
}

// New creates a new handler.
func New(repo repository.MarketplaceRepository, storeType, version string) *Handler {
	return &Handler{
		repo:      repo,
		storeType: storeType,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	response.OK(w, resp)
}

// StatusResponse represents the unified status response for monitoring.
type StatusResponse struct {
	Service       string  `json:"service"`
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	StoreType     string  `json:"store_type"`
	MemoryMB      float64 `json:"memory_mb"`
}

// Status handles GET /api/status - unified health check for monitoring
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       "booba-marketplace-api",
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StoreType:     h.storeType,
		MemoryMB:      float64(int(memoryMB*100)) / 100,
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}

// Stats handles GET /api/v1/stats - store row counts plus runtime info
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["server_time"] = time.Now().UTC().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["goroutines"] = runtime.NumGoroutine()

	if h.repo != nil {
		storeStats, err := h.repo.Stats(r.Context())
		if err != nil {
			response.Error(w, err)
			return
		}
		stats["store"] = storeStats
	}

	response.OK(w, stats)
}
