package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/playon/internal/cache"
	"github.com/shapedtime/playon/internal/watch"
)

type StatusResponse struct {
	Cache           cache.Stats   `json:"cache"`
	CacheTTLSeconds float64       `json:"cache_ttl_seconds"`
	Watch           *watch.Status `json:"watch,omitempty"`
	AniList         bool          `json:"anilist"`
	MAL             bool          `json:"mal"`
	Downloads       bool          `json:"downloads"`
}

func (s *Server) getStatus(c *gin.Context) {
	resp := StatusResponse{
		AniList:   s.anilist != nil,
		MAL:       s.mal != nil,
		Downloads: s.downloader != nil,
	}
	if s.lookup != nil {
		resp.Cache = s.lookup.Stats()
		resp.CacheTTLSeconds = s.lookup.TTL().Seconds()
	}
	if s.watcher != nil {
		st := s.watcher.Status()
		resp.Watch = &st
	}
	c.JSON(http.StatusOK, resp)
}
