// Package api exposes detection, history, files and downloads over HTTP.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/shapedtime/playon/internal/anilist"
	"github.com/shapedtime/playon/internal/cache"
	"github.com/shapedtime/playon/internal/detect"
	"github.com/shapedtime/playon/internal/download"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/logging"
	"github.com/shapedtime/playon/internal/mal"
	"github.com/shapedtime/playon/internal/watch"
)

// Server represents the REST API server
type Server struct {
	router   *gin.Engine
	detector *detect.Detector
	lookup   *cache.Lookup[identify.MatchResult]
	events   *history.EventRepository
	tokens   *history.TokenRepository // Optional: enables OAuth callbacks
	watcher  *watch.Service           // Optional: background polling
	anilist  *anilist.Client          // Optional
	mal      *mal.Client              // Optional

	downloader  *download.Downloader
	downloadDir string
	concurrency int

	// pending OAuth flows by state; the verifier is "" for AniList
	pendingMu sync.Mutex
	pending   map[string]pendingAuth
	now       func() time.Time

	log zerolog.Logger
}

// NewServer creates a new API server
func NewServer(detector *detect.Detector, lookup *cache.Lookup[identify.MatchResult], events *history.EventRepository) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		detector: detector,
		lookup:   lookup,
		events:   events,
		pending:  make(map[string]pendingAuth),
		now:      time.Now,
		log:      logging.Component("api"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetWatchService reports the polling loop in /api/status.
func (s *Server) SetWatchService(svc *watch.Service) {
	s.watcher = svc
}

// SetAniList enables anime search and the AniList OAuth callback.
func (s *Server) SetAniList(c *anilist.Client) {
	s.anilist = c
}

// SetMAL enables MAL search, OAuth and progress updates.
func (s *Server) SetMAL(c *mal.Client) {
	s.mal = c
}

// SetTokenRepository stores tokens obtained through the OAuth callbacks.
func (s *Server) SetTokenRepository(r *history.TokenRepository) {
	s.tokens = r
}

// SetDownloads enables chapter downloads into dir.
func (s *Server) SetDownloads(d *download.Downloader, dir string, concurrency int) {
	s.downloader = d
	s.downloadDir = dir
	s.concurrency = concurrency
	s.log.Info().Str("dir", dir).Msg("downloads configured")
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(func(c *gin.Context) {
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("API request")
	})

	// CORS for the local web UI
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// Detection
	api.GET("/detect", s.detectActive)
	api.GET("/detect/all", s.detectAll)
	api.POST("/detect", s.detectTitle)
	api.GET("/parse", s.parseTitle)
	api.DELETE("/cache", s.clearCache)

	// Catalog
	api.GET("/anime/search", s.searchAnime)
	api.GET("/auth/:provider", s.startAuth)
	api.GET("/auth/:provider/callback", s.authCallback)
	api.POST("/mal/progress", s.updateMALProgress)

	// History
	api.GET("/history", s.listHistory)

	// Files and downloads
	api.GET("/files", s.listFiles)
	api.POST("/downloads/chapter", s.downloadChapter)

	// Status
	api.GET("/status", s.getStatus)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Error response helper
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
