package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/config"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/handler"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/middleware"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/delivery/http/routes"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

// New builds the fiber app around an already wired container.
func New(c *Container) *App {
	f := fiber.New(fiber.Config{AppName: c.Config.App.AppName})

	registerGlobalMiddleware(f, c.Logger)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

func Bootstrap(cfg config.Config, l *log.Logger) (*App, func() error, error) {
	c, err := NewContainer(cfg, l)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := c.Migrate(ctx); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return New(c), c.Close, nil
}

func registerGlobalMiddleware(app *fiber.App, l *log.Logger) {
	if app == nil {
		return
	}

	app.Use(middleware.NewAccessLogMiddleware(l.With("component", "http")).Middleware())
	app.Use(middleware.NewErrorMiddleware(l).Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	routes.NewRegistry(
		handler.NewHealthHandler(c.DB, c.Cache),
		handler.NewCompetitorPriceHandler(c.Query, c.Refresh, c.Logger),
		c.Metrics.Handler(),
	).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
