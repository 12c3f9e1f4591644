package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/config"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/database"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/database/migration"
	dbpostgres "github.com/stephanyes/estudio-maker-turnos-sub001/internal/database/postgres"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/infrastructure/cache"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/metrics"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/repository"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/scraper"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/usecase"
	"github.com/stephanyes/estudio-maker-turnos-sub001/migrations"
)

// Container holds everything the server and the CLI share.
type Container struct {
	Config  config.Config
	Logger  *log.Logger
	DB      database.DB
	Cache   *cache.Redis
	Metrics *metrics.Registry

	Prices repository.PriceRepository
	Runs   repository.ScrapeRunRepository

	Registry *scraper.Registry
	Refresh  *usecase.PriceRefresh
	Query    *usecase.PriceQuery
}

func NewContainer(cfg config.Config, l *log.Logger) (*Container, error) {
	l = logger.OrDefault(l)
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no competitor sources configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database, l)
	if err != nil {
		return nil, err
	}

	// The fetch timeout lives on the transport, the fetch primitive has none.
	client := &http.Client{Timeout: cfg.Scraper.FetchTimeout}
	registry, err := scraper.BuildRegistry(cfg.Sources, cfg.Scraper, client, l)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build extractors: %w", err)
	}

	c := &Container{
		Config:   cfg,
		Logger:   l,
		DB:       db,
		Cache:    cache.NewRedis(cfg.Redis, l.With("component", "cache")),
		Metrics:  metrics.NewRegistry(),
		Prices:   repository.NewPostgresPriceRepository(db),
		Runs:     repository.NewPostgresScrapeRunRepository(db),
		Registry: registry,
	}

	c.Refresh = usecase.NewPriceRefreshUsecase(c.Prices, c.Runs, registry, c.Cache, c.Metrics, usecase.PriceRefreshConfig{
		MinInterval:   cfg.Scraper.MinInterval,
		LockMinutes:   cfg.Scraper.LockMinutes,
		MinYieldRatio: cfg.Scraper.MinYieldRatio,
	}, l.With("component", "refresh"))
	c.Query = usecase.NewPriceQueryUsecase(c.Prices, c.Runs, registry.Sources(), c.Cache, cfg.Redis.TTL, l)

	return c, nil
}

func (c *Container) Migrate(ctx context.Context) error {
	r := migration.Runner{Dir: c.Config.MigrationsDir, FS: migrations.FS, Logger: c.Logger}
	return r.Run(ctx, c.DB.SQLDB())
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	_ = c.Cache.Close()
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
