package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/app"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/config"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	remote "github.com/stephanyes/estudio-maker-turnos-sub001/internal/infrastructure/scraper"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/usecase"
)

func main() {
	force := flag.Bool("force", false, "bypass the min-interval and lock checks")
	noCache := flag.Bool("nocache", false, "ignore ETag/Last-Modified and re-extract")
	sources := flag.String("source", "", "comma separated sources to refresh (default all)")
	useRemote := flag.Bool("remote", false, "trigger the refresh endpoint at REFRESH_REMOTE_URL instead of running in process")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	l := logger.New(cfg.Log)

	opts := usecase.RefreshOptions{Force: *force, NoCache: *noCache, Sources: splitSources(*sources)}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var results map[pricing.Source]usecase.SourceRefreshResult
	if *useRemote {
		client := remote.NewRefreshClient(cfg.RefreshRemoteURL, *timeout, l)
		if client == nil {
			l.Fatal("REFRESH_REMOTE_URL is not configured")
		}
		results, err = client.TriggerRefresh(ctx, opts)
	} else {
		results, err = runLocal(ctx, cfg, l, opts)
	}
	if err != nil {
		l.Fatal("refresh failed", "err", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)

	failed := false
	for src, res := range results {
		if res.Status == pricing.RunStatusFailed {
			l.Error("source failed", "source", src, "err", res.Error)
			failed = true
		}
	}
	if failed {
		cancel()
		os.Exit(1)
	}
}

func runLocal(ctx context.Context, cfg config.Config, l *log.Logger, opts usecase.RefreshOptions) (map[pricing.Source]usecase.SourceRefreshResult, error) {
	c, err := app.NewContainer(cfg, l)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = c.Close()
	}()

	if err := c.Migrate(ctx); err != nil {
		return nil, err
	}
	return c.Refresh.Refresh(ctx, opts)
}

func splitSources(s string) []pricing.Source {
	var out []pricing.Source
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, pricing.Source(p))
		}
	}
	return out
}
