package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/pkg/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type CacheStatus interface {
	Pinger
	Enabled() bool
}

type HealthHandler struct {
	db    Pinger
	cache CacheStatus
}

func NewHealthHandler(db Pinger, cache CacheStatus) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

type healthData struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.HandleHealth)
}

// HandleHealth reports 503 only when the database is down; a missing cache
// is reported as bypassed.
func (h *HealthHandler) HandleHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	data := healthData{Database: "up", Cache: "bypassed"}
	if h.cache != nil && h.cache.Enabled() {
		data.Cache = "up"
		if err := h.cache.Ping(ctx); err != nil {
			data.Cache = "down"
		}
	}

	if h.db == nil {
		data.Database = "unconfigured"
		return response.Error(c, fiber.StatusServiceUnavailable, response.MessageServiceUnavailable, data)
	}
	if err := h.db.Ping(ctx); err != nil {
		data.Database = "down"
		return response.Error(c, fiber.StatusServiceUnavailable, response.MessageServiceUnavailable, data)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, data)
}
