package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/shapedtime/playon/internal/api"
	"github.com/shapedtime/playon/internal/download"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/metrics"
	"github.com/shapedtime/playon/internal/watch"
	"github.com/shapedtime/playon/internal/window"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API, metrics endpoint and watch loop",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-watch",
			Usage: "do not poll the foreground window",
		},
	},
	Action: func(c *cli.Context) error {
		rt, err := setup(c, window.System())
		if err != nil {
			return err
		}
		defer rt.Close()
		cfg := rt.cfg

		apiServer := api.NewServer(rt.detector, rt.lookup, rt.events)
		apiServer.SetTokenRepository(rt.tokens)
		apiServer.SetAniList(rt.anilist)
		if rt.mal != nil {
			apiServer.SetMAL(rt.mal)
		}
		apiServer.SetDownloads(download.New(), cfg.Downloads.Dir, cfg.Downloads.Concurrency)

		var watcher *watch.Service
		if !c.Bool("no-watch") {
			watcher = watch.NewService(cfg.Watch, rt.detector, rt.events)
			watcher.OnRecord = func(e history.Event) {
				rt.log.Info().
					Str("window", e.WindowTitle).
					Str("player", e.Player).
					Msg("now watching")
			}
			apiServer.SetWatchService(watcher)
			watcher.Start()
			defer watcher.Stop()
		}

		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		var metricsServer *metrics.Server
		if cfg.Server.MetricsPort > 0 {
			metricsServer = metrics.NewServer(cfg.Server.MetricsPort, rt.registry)
			go metricsServer.Start() // logs its own failure
		}

		errCh := make(chan error, 1)
		go func() {
			rt.log.Info().Int("port", cfg.Server.HTTPPort).Msg("starting REST API server")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		rt.log.Info().
			Str("api_url", fmt.Sprintf("http://localhost:%d/api", cfg.Server.HTTPPort)).
			Str("provider", cfg.Catalog.Provider).
			Msg("playon is ready")

		select {
		case <-c.Context.Done():
			rt.log.Info().Msg("received signal, shutting down")
		case err := <-errCh:
			return fmt.Errorf("REST API server: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			rt.log.Error().Err(err).Msg("REST API server shutdown error")
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(ctx); err != nil {
				rt.log.Error().Err(err).Msg("metrics server shutdown error")
			}
		}

		rt.log.Info().Msg("playon stopped")
		return nil
	},
}
