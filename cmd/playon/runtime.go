package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/shapedtime/playon/internal/anilist"
	"github.com/shapedtime/playon/internal/cache"
	"github.com/shapedtime/playon/internal/config"
	"github.com/shapedtime/playon/internal/detect"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/logging"
	"github.com/shapedtime/playon/internal/mal"
	"github.com/shapedtime/playon/internal/metrics"
	"github.com/shapedtime/playon/internal/window"
)

// runtime holds everything a command may need, built once from the config.
type runtime struct {
	cfg      *config.Config
	db       *history.DB
	events   *history.EventRepository
	tokens   *history.TokenRepository
	anilist  *anilist.Client
	mal      *mal.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	lookup   *cache.Lookup[identify.MatchResult]
	detector *detect.Detector
	log      zerolog.Logger

	logCloser io.Closer
}

func setup(c *cli.Context, source window.Source) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	_, closer := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	rt := &runtime{
		cfg:       cfg,
		log:       logging.Component("main"),
		logCloser: closer,
	}

	rt.db, err = history.NewDB(c.Context, cfg.Database.Path)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.events = history.NewEventRepository(rt.db)
	rt.tokens = history.NewTokenRepository(rt.db)
	rt.log.Debug().Str("path", cfg.Database.Path).Msg("database initialized")

	anilistOpts := []anilist.Option{
		anilist.WithTimeout(cfg.Catalog.RequestTimeout),
		anilist.WithRateLimit(cfg.Catalog.RatePerMinute),
	}
	if cfg.AniList.ClientID != "" {
		anilistOpts = append(anilistOpts, anilist.WithOAuth(cfg.AniList.ClientID, cfg.AniList.ClientSecret, cfg.AniList.RedirectURI))
	}
	rt.anilist = anilist.NewClient(anilistOpts...)

	if cfg.MAL.ClientID != "" {
		rt.mal = mal.NewClient(cfg.MAL.ClientID, cfg.MAL.ClientSecret, cfg.MAL.RedirectURI,
			mal.WithTimeout(cfg.Catalog.RequestTimeout),
			mal.WithRateLimit(cfg.Catalog.RatePerMinute),
		)
	}

	var searcher identify.Searcher = rt.anilist
	if cfg.Catalog.Provider == config.ProviderMAL {
		// Validate guarantees a client ID for the mal provider
		searcher = rt.mal
	}

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.New(rt.registry)

	matcher := identify.NewMatcher(rt.metrics.InstrumentSearcher(searcher))
	matchLog := logging.Component("matcher")
	matcher.OnStep = func(s identify.Step) {
		matchLog.Debug().
			Str("query", s.Query).
			Int("words", s.WordsUsed).
			Int("total", s.TotalWords).
			Bool("found", s.Found).
			Bool("accepted", s.Accepted).
			Err(s.Err).
			Msg("search step")
	}

	rt.lookup = cache.New[identify.MatchResult](cfg.Catalog.CacheTTL)
	rt.registry.MustRegister(metrics.NewCacheCollector(rt.lookup))

	rt.detector = detect.NewDetector(source, matcher, rt.lookup, rt.metrics)

	rt.log.Debug().
		Str("provider", cfg.Catalog.Provider).
		Dur("cache_ttl", cfg.Catalog.CacheTTL).
		Msg("detector initialized")

	return rt, nil
}

func (rt *runtime) Close() {
	if err := rt.db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
	rt.logCloser.Close()
}
