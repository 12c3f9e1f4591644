package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/handler"
	v1 "github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/routes/v1"
)

func RegisterV1(r fiber.Router, prices *handler.CompetitorPriceHandler) {
	if r == nil {
		return
	}

	v1.Register(r, prices)
}
