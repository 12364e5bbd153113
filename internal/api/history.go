package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/playon/internal/history"
)

const defaultHistoryLimit = 50

func (s *Server) listHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errorResponse(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := s.events.Recent(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list history")
		errorResponse(c, http.StatusInternalServerError, "failed to list history")
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
