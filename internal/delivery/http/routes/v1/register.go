package v1

import (
	"github.com/gofiber/fiber/v3"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/handler"
)

func Register(r fiber.Router, prices *handler.CompetitorPriceHandler) {
	if r == nil || prices == nil {
		return
	}

	prices.RegisterRoutes(r.Group("/competitor-prices"))
}
