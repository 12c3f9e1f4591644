package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/handler"
)

type Registry struct {
	health  *handler.HealthHandler
	prices  *handler.CompetitorPriceHandler
	metrics http.Handler
}

func NewRegistry(health *handler.HealthHandler, prices *handler.CompetitorPriceHandler, metrics http.Handler) *Registry {
	return &Registry{health: health, prices: prices, metrics: metrics}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil || r == nil {
		return
	}

	r.registerHealth(app)
	r.registerMetrics(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
}

func (r *Registry) registerMetrics(app *fiber.App) {
	if r.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.metrics))
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	RegisterV1(api.Group("/v1"), r.prices)
}
