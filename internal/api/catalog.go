package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/playon/internal/config"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/mal"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type ProgressRequest struct {
	AnimeID  int    `json:"anime_id" binding:"required"`
	Episodes int    `json:"episodes" binding:"min=0"`
	Status   string `json:"status,omitempty"`
}

// searchAnime queries AniList when configured, MAL otherwise.
func (s *Server) searchAnime(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		errorResponse(c, http.StatusBadRequest, "q query parameter is required")
		return
	}

	limit := defaultSearchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errorResponse(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	ctx := c.Request.Context()
	switch {
	case s.anilist != nil:
		results, err := s.anilist.SearchAnime(ctx, query, limit)
		if err != nil {
			s.log.Error().Err(err).Str("query", query).Msg("anilist search failed")
			errorResponse(c, http.StatusBadGateway, "catalog search failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"provider": config.ProviderAniList, "results": results})
	case s.mal != nil:
		results, err := s.mal.SearchAnime(ctx, query, limit)
		if err != nil {
			s.log.Error().Err(err).Str("query", query).Msg("mal search failed")
			errorResponse(c, http.StatusBadGateway, "catalog search failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"provider": config.ProviderMAL, "results": results})
	default:
		errorResponse(c, http.StatusNotFound, "no catalog configured")
	}
}

// startAuth redirects the browser to the provider's consent page.
func (s *Server) startAuth(c *gin.Context) {
	if s.tokens == nil {
		errorResponse(c, http.StatusNotFound, "token storage not configured")
		return
	}

	state, err := mal.NewVerifier()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	state = state[:32]

	var target string
	switch provider := c.Param("provider"); {
	case provider == config.ProviderAniList && s.anilist != nil:
		target, err = s.anilist.AuthURL(state)
		if err != nil {
			errorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		s.addPending(state, "")
	case provider == config.ProviderMAL && s.mal != nil:
		verifier, err := mal.NewVerifier()
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, err.Error())
			return
		}
		target = s.mal.AuthURL(state, verifier)
		s.addPending(state, verifier)
	default:
		errorResponse(c, http.StatusNotFound, "unknown provider: "+provider)
		return
	}

	c.Redirect(http.StatusFound, target)
}

func (s *Server) authCallback(c *gin.Context) {
	provider := c.Param("provider")
	code := c.Query("code")
	if code == "" {
		errorResponse(c, http.StatusBadRequest, "missing code")
		return
	}
	verifier, ok := s.takePending(c.Query("state"))
	if !ok || s.tokens == nil {
		errorResponse(c, http.StatusBadRequest, "unknown or expired state")
		return
	}

	ctx := c.Request.Context()
	var tok history.Token
	switch {
	case provider == config.ProviderAniList && s.anilist != nil:
		t, err := s.anilist.ExchangeCode(ctx, code)
		if err != nil {
			s.log.Error().Err(err).Msg("anilist code exchange failed")
			errorResponse(c, http.StatusBadGateway, "token exchange failed")
			return
		}
		tok = history.TokenFromOAuth(provider, t)
	case provider == config.ProviderMAL && s.mal != nil:
		t, err := s.mal.Exchange(ctx, code, verifier)
		if err != nil {
			s.log.Error().Err(err).Msg("mal code exchange failed")
			errorResponse(c, http.StatusBadGateway, "token exchange failed")
			return
		}
		tok = history.TokenFromOAuth(provider, t)
	default:
		errorResponse(c, http.StatusNotFound, "unknown provider: "+provider)
		return
	}

	if err := s.tokens.Save(ctx, tok); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Str("provider", provider).Msg("account linked")
	c.JSON(http.StatusOK, gin.H{"provider": provider, "linked": true})
}

// updateMALProgress sets the watched episode count on the linked MAL list,
// refreshing the stored token first when it has expired.
func (s *Server) updateMALProgress(c *gin.Context) {
	if s.mal == nil || s.tokens == nil {
		errorResponse(c, http.StatusNotFound, "mal not configured")
		return
	}

	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	tok, err := s.tokens.Get(ctx, config.ProviderMAL)
	if errors.Is(err, history.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, "mal account not linked")
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if tok.Expired(time.Now()) && tok.RefreshToken != "" {
		fresh, err := s.mal.Refresh(ctx, tok.RefreshToken)
		if err != nil {
			s.log.Error().Err(err).Msg("mal token refresh failed")
			errorResponse(c, http.StatusBadGateway, "token refresh failed")
			return
		}
		refreshed := history.TokenFromOAuth(config.ProviderMAL, fresh)
		if err := s.tokens.Save(ctx, refreshed); err != nil {
			errorResponse(c, http.StatusInternalServerError, err.Error())
			return
		}
		tok = &refreshed
	}

	status, err := s.mal.UpdateAnimeProgress(ctx, tok.AccessToken, req.AnimeID, req.Episodes, req.Status)
	switch {
	case errors.Is(err, mal.ErrUnauthorized):
		errorResponse(c, http.StatusUnauthorized, "mal rejected the stored token")
		return
	case errors.Is(err, mal.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "anime not found")
		return
	case err != nil:
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, status)
}

// pendingAuthTTL is how long a started OAuth flow waits for its callback.
const pendingAuthTTL = 10 * time.Minute

type pendingAuth struct {
	verifier string
	created  time.Time
}

func (s *Server) addPending(state, verifier string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	now := s.now()
	for k, p := range s.pending {
		if now.Sub(p.created) >= pendingAuthTTL {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingAuth{verifier: verifier, created: now}
}

func (s *Server) takePending(state string) (string, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	p, ok := s.pending[state]
	delete(s.pending, state)
	if !ok || s.now().Sub(p.created) >= pendingAuthTTL {
		return "", false
	}
	return p.verifier, true
}
