package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/dto"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/middleware"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/pkg/response"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/usecase"
)

type CompetitorPriceHandler struct {
	query   usecase.PriceQueryUsecase
	refresh usecase.PriceRefreshUsecase
	log     *log.Logger
}

func NewCompetitorPriceHandler(query usecase.PriceQueryUsecase, refresh usecase.PriceRefreshUsecase, l *log.Logger) *CompetitorPriceHandler {
	return &CompetitorPriceHandler{query: query, refresh: refresh, log: logger.OrDefault(l)}
}

func (h *CompetitorPriceHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.HandleLatest)
	r.Get("/runs", h.HandleListRuns)
	r.Post("/refresh", h.HandleRefresh)
	r.Get("/refresh", h.HandleRefresh)
}

func (h *CompetitorPriceHandler) HandleLatest(c fiber.Ctx) error {
	data, err := h.query.LatestPrices(c.Context())
	if err != nil {
		return mapPriceUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, data)
}

// HandleRefresh answers 200 even when some sources failed; their errors are
// part of the per-source results.
func (h *CompetitorPriceHandler) HandleRefresh(c fiber.Ctx) error {
	force, err := parseQueryBool(c, "force")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "invalid force flag", nil, err)
	}
	noCache, err := parseQueryBool(c, "nocache")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "invalid nocache flag", nil, err)
	}

	opts := usecase.RefreshOptions{Force: force, NoCache: noCache, Sources: parseSourcesQuery(c.Query("source"))}
	h.log.Info("refresh requested", "force", force, "nocache", noCache, "sources", opts.Sources)

	results, err := h.refresh.Refresh(c.Context(), opts)
	if err != nil {
		return mapPriceUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, results)
}

func (h *CompetitorPriceHandler) HandleListRuns(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 0)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "invalid limit", nil, err)
	}

	runs, err := h.query.ListRuns(c.Context(), c.Query("source"), limit)
	if err != nil {
		return mapPriceUsecaseError(err)
	}

	out := make([]dto.ScrapeRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.NewScrapeRunResponse(run))
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

func parseQueryBool(c fiber.Ctx, key string) (bool, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseQueryIntStrict(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}

func parseSourcesQuery(s string) []pricing.Source {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]pricing.Source, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, pricing.Source(p))
	}
	return out
}

func mapPriceUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
