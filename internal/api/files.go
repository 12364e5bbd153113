package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/playon/internal/download"
	"github.com/shapedtime/playon/internal/files"
)

type ChapterRequest struct {
	MangaTitle   string   `json:"manga_title" binding:"required"`
	ChapterTitle string   `json:"chapter_title" binding:"required"`
	URLs         []string `json:"urls" binding:"required,min=1"`
}

func (s *Server) listFiles(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		errorResponse(c, http.StatusBadRequest, "path query parameter is required")
		return
	}

	items, err := files.ListFolder(path)
	if errors.Is(err, fs.ErrNotExist) {
		errorResponse(c, http.StatusNotFound, "folder not found")
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "items": items})
}

func (s *Server) downloadChapter(c *gin.Context) {
	if s.downloader == nil {
		errorResponse(c, http.StatusNotFound, "downloads not configured")
		return
	}

	var req ChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.downloader.ChapterToCBZ(c.Request.Context(), download.Request{
		MangaTitle:   req.MangaTitle,
		ChapterTitle: req.ChapterTitle,
		URLs:         req.URLs,
		Dir:          s.downloadDir,
		Concurrency:  s.concurrency,
	})
	if errors.Is(err, download.ErrInvalidName) {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, fs.ErrNotExist) {
		errorResponse(c, http.StatusNotFound, "download directory not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("manga", req.MangaTitle).Str("chapter", req.ChapterTitle).Msg("chapter download failed")
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"path": path, "pages": len(req.URLs)})
}
