package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/playon/internal/detect"
	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/player"
)

type DetectRequest struct {
	Title string `json:"title" binding:"required"`
}

type ParseResponse struct {
	Title      string               `json:"title"`
	Player     player.Kind          `json:"player,omitempty"`
	Normalized string               `json:"normalized"`
	Parsed     identify.ParsedTitle `json:"parsed"`
	Strategy   string               `json:"strategy"`
	Quality    identify.QualityInfo `json:"quality"`
}

func (s *Server) detectActive(c *gin.Context) {
	c.JSON(http.StatusOK, s.detector.Detect(c.Request.Context()))
}

func (s *Server) detectAll(c *gin.Context) {
	detections := s.detector.DetectAll(c.Request.Context())
	if detections == nil {
		detections = []detect.Detection{}
	}
	c.JSON(http.StatusOK, gin.H{"detections": detections})
}

func (s *Server) detectTitle(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.detector.DetectTitle(c.Request.Context(), req.Title))
}

// parseTitle runs normalization and parsing only. The title does not have to
// come from a known player.
func (s *Server) parseTitle(c *gin.Context) {
	title := c.Query("title")
	if strings.TrimSpace(title) == "" {
		errorResponse(c, http.StatusBadRequest, "title query parameter is required")
		return
	}

	normalized := identify.Normalize(title)
	parsed, strategy := identify.ParseWithStrategy(normalized)
	kind, _ := player.Classify(title)

	c.JSON(http.StatusOK, ParseResponse{
		Title:      title,
		Player:     kind,
		Normalized: normalized,
		Parsed:     parsed,
		Strategy:   strategy,
		Quality:    identify.ExtractQuality(title),
	})
}

func (s *Server) clearCache(c *gin.Context) {
	if s.lookup == nil {
		c.JSON(http.StatusOK, gin.H{"cleared": 0})
		return
	}
	n := s.lookup.Len()
	s.lookup.Clear()
	s.log.Info().Int("entries", n).Msg("lookup cache cleared")
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}
