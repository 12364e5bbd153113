package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shapedtime/playon/internal/anilist"
	"github.com/shapedtime/playon/internal/cache"
	"github.com/shapedtime/playon/internal/detect"
	"github.com/shapedtime/playon/internal/download"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/mal"
	"github.com/shapedtime/playon/internal/window"
)

type catalog map[string]string

func (c catalog) Search(_ context.Context, query string) (*identify.Candidate, error) {
	english, ok := c[query]
	if !ok {
		return nil, nil
	}
	return &identify.Candidate{ID: 1, English: &english}, nil
}

type testEnv struct {
	server *Server
	lookup *cache.Lookup[identify.MatchResult]
	db     *history.DB
}

func newTestEnv(t *testing.T, source window.Source) *testEnv {
	t.Helper()

	db, err := history.NewDB(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lookup := cache.New[identify.MatchResult](time.Minute)
	matcher := identify.NewMatcher(catalog{
		"Frieren": "Frieren: Beyond Journey's End",
		"Jujutsu": "Jujutsu Kaisen",
	})
	detector := detect.NewDetector(source, matcher, lookup, nil)

	s := NewServer(detector, lookup, history.NewEventRepository(db))
	s.SetTokenRepository(history.NewTokenRepository(db))
	return &testEnv{server: s, lookup: lookup, db: db}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestDetectTitle(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	w := env.do(t, http.MethodPost, "/api/detect", DetectRequest{Title: "Frieren - 05.mkv - VLC media player"})
	require.Equal(http.StatusOK, w.Code)

	det := decode[detect.Detection](t, w)
	require.Equal(detect.StatusDetected, det.Status)
	require.Equal("Frieren", det.Parsed.TitleText())
	require.Equal(5, *det.Parsed.Episode)
	require.NotNil(det.Match)
	require.Equal("Frieren", det.Match.MatchedQuery)

	w = env.do(t, http.MethodPost, "/api/detect", map[string]string{})
	require.Equal(http.StatusBadRequest, w.Code)
	require.Contains(decode[map[string]string](t, w), "error")
}

func TestDetectActiveAndAll(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{
		Active: "Jujutsu Kaisen S02E03.mkv - mpv",
		Visible: []string{
			"Inbox - Mail",
			"Jujutsu Kaisen S02E03.mkv - mpv",
			"Frieren - 01.mkv - VLC media player",
		},
	})

	w := env.do(t, http.MethodGet, "/api/detect", nil)
	require.Equal(http.StatusOK, w.Code)
	det := decode[detect.Detection](t, w)
	require.Equal(detect.StatusDetected, det.Status)
	require.Equal(2, *det.Parsed.Season)

	w = env.do(t, http.MethodGet, "/api/detect/all", nil)
	require.Equal(http.StatusOK, w.Code)
	all := decode[struct {
		Detections []detect.Detection `json:"detections"`
	}](t, w)
	require.Len(all.Detections, 2)
	require.Equal("Jujutsu Kaisen", all.Detections[0].Parsed.TitleText())
	require.Equal("Frieren", all.Detections[1].Parsed.TitleText())
}

func TestDetectNoWindow(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	w := env.do(t, http.MethodGet, "/api/detect", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal(detect.StatusNoWindow, decode[detect.Detection](t, w).Status)

	w = env.do(t, http.MethodGet, "/api/detect/all", nil)
	require.Equal(http.StatusOK, w.Code)
	require.JSONEq(`{"detections": []}`, w.Body.String())
}

func TestParse(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})

	w := env.do(t, http.MethodGet, "/api/parse", nil)
	require.Equal(http.StatusBadRequest, w.Code)

	q := url.Values{"title": {"[SubsPlease] Frieren - 12 (1080p) [ABCD1234].mkv - mpv"}}
	w = env.do(t, http.MethodGet, "/api/parse?"+q.Encode(), nil)
	require.Equal(http.StatusOK, w.Code)

	resp := decode[ParseResponse](t, w)
	require.Equal("mpv", string(resp.Player))
	require.Equal("Frieren", resp.Parsed.TitleText())
	require.Equal(12, *resp.Parsed.Episode)
	require.Equal("1080p", resp.Quality.Resolution)
	require.NotEmpty(resp.Strategy)
}

func TestCacheAndStatus(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	env.do(t, http.MethodPost, "/api/detect", DetectRequest{Title: "Frieren - 05.mkv - mpv"})
	env.do(t, http.MethodPost, "/api/detect", DetectRequest{Title: "Frieren - 06.mkv - mpv"})

	w := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(http.StatusOK, w.Code)
	st := decode[StatusResponse](t, w)
	require.Equal(1, st.Cache.Entries)
	require.Equal(uint64(1), st.Cache.Hits)
	require.Equal(uint64(1), st.Cache.Misses)
	require.Equal(60.0, st.CacheTTLSeconds)
	require.Nil(st.Watch)

	w = env.do(t, http.MethodDelete, "/api/cache", nil)
	require.Equal(http.StatusOK, w.Code)
	require.JSONEq(`{"cleared": 1}`, w.Body.String())
	require.Zero(env.lookup.Len())
}

func TestHistory(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	repo := history.NewEventRepository(env.db)
	ctx := context.Background()
	for _, title := range []string{"a.mkv - mpv", "b.mkv - mpv", "c.mkv - mpv"} {
		require.NoError(repo.Record(ctx, &history.Event{WindowTitle: title, Player: "mpv"}))
	}

	w := env.do(t, http.MethodGet, "/api/history?limit=2", nil)
	require.Equal(http.StatusOK, w.Code)
	resp := decode[struct {
		Events []history.Event `json:"events"`
	}](t, w)
	require.Len(resp.Events, 2)

	w = env.do(t, http.MethodGet, "/api/history?limit=zero", nil)
	require.Equal(http.StatusBadRequest, w.Code)
}

func TestFiles(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	dir := t.TempDir()
	require.NoError(os.WriteFile(filepath.Join(dir, "ep01.mkv"), []byte("x"), 0644))
	require.NoError(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	w := env.do(t, http.MethodGet, "/api/files", nil)
	require.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/files?"+url.Values{"path": {filepath.Join(dir, "missing")}}.Encode(), nil)
	require.Equal(http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/files?"+url.Values{"path": {dir}}.Encode(), nil)
	require.Equal(http.StatusOK, w.Code)
	resp := decode[struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}](t, w)
	require.Len(resp.Items, 1)
	require.Equal("ep01.mkv", resp.Items[0].Name)
}

func TestDownloadChapter(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer pages.Close()

	env := newTestEnv(t, window.Static{})
	req := ChapterRequest{
		MangaTitle:   "Chainsaw Man",
		ChapterTitle: "Chapter 1",
		URLs:         []string{pages.URL + "/1.jpg", pages.URL + "/2.jpg"},
	}

	w := env.do(t, http.MethodPost, "/api/downloads/chapter", req)
	require.Equal(http.StatusNotFound, w.Code)

	dir := t.TempDir()
	env.server.SetDownloads(download.New(download.WithRetryDelay(time.Millisecond)), dir, 2)

	w = env.do(t, http.MethodPost, "/api/downloads/chapter", ChapterRequest{MangaTitle: "x"})
	require.Equal(http.StatusBadRequest, w.Code)

	escape := req
	escape.MangaTitle = ".."
	w = env.do(t, http.MethodPost, "/api/downloads/chapter", escape)
	require.Equal(http.StatusBadRequest, w.Code)
	require.NoFileExists(filepath.Join(filepath.Dir(dir), "Chapter 1.cbz"))

	w = env.do(t, http.MethodPost, "/api/downloads/chapter", req)
	require.Equal(http.StatusCreated, w.Code)
	require.FileExists(filepath.Join(dir, "Chainsaw Man", "Chapter 1.cbz"))
}

func TestSearchAnime(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	w := env.do(t, http.MethodGet, "/api/anime/search?q=frieren", nil)
	require.Equal(http.StatusNotFound, w.Code)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"Page":{"media":[{"id":154587,"title":{"romaji":"Sousou no Frieren","english":"Frieren"},"coverImage":{},"status":"FINISHED"}]}}}`))
	}))
	defer srv.Close()
	env.server.SetAniList(anilist.NewClient(anilist.WithEndpoint(srv.URL), anilist.WithRateLimit(0)))

	w = env.do(t, http.MethodGet, "/api/anime/search", nil)
	require.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/anime/search?q=frieren&limit=3", nil)
	require.Equal(http.StatusOK, w.Code)
	resp := decode[struct {
		Provider string          `json:"provider"`
		Results  []anilist.Anime `json:"results"`
	}](t, w)
	require.Equal("anilist", resp.Provider)
	require.Len(resp.Results, 1)
	require.Equal(154587, resp.Results[0].ID)
}

func TestAuthCallbackRejectsUnknownState(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	env.server.SetMAL(mal.NewClient("id", "secret", "http://localhost/cb"))

	w := env.do(t, http.MethodGet, "/api/auth/mal/callback?code=abc&state=nope", nil)
	require.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/mal", nil)
	require.Equal(http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	require.Contains(location, "code_challenge_method=plain")
	require.Contains(location, "state=")

	w = env.do(t, http.MethodGet, "/api/auth/kitsu", nil)
	require.Equal(http.StatusNotFound, w.Code)
}

func TestPendingAuthExpires(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	env := newTestEnv(t, window.Static{})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	env.server.now = func() time.Time { return now }

	env.server.addPending("old", "v1")
	env.server.addPending("kept", "v2")

	now = now.Add(pendingAuthTTL)
	_, ok := env.server.takePending("old")
	require.False(ok)

	env.server.addPending("new", "v3")
	require.Len(env.server.pending, 1)

	verifier, ok := env.server.takePending("new")
	require.True(ok)
	require.Equal("v3", verifier)
	_, ok = env.server.takePending("new")
	require.False(ok)
}

func TestMALProgress(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/anime/52991/my_list_status" || r.Header.Get("Authorization") != "Bearer live" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"watching","score":0,"num_episodes_watched":` + r.PostForm.Get("num_watched_episodes") + `,"is_rewatching":false}`))
	}))
	defer srv.Close()

	env := newTestEnv(t, window.Static{})
	env.server.SetMAL(mal.NewClient("id", "secret", "http://localhost/cb", mal.WithBaseURL(srv.URL), mal.WithRateLimit(0)))

	w := env.do(t, http.MethodPost, "/api/mal/progress", ProgressRequest{AnimeID: 52991, Episodes: 5})
	require.Equal(http.StatusNotFound, w.Code)

	tokens := history.NewTokenRepository(env.db)
	require.NoError(tokens.Save(context.Background(), history.Token{
		Provider:    "mal",
		AccessToken: "live",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	w = env.do(t, http.MethodPost, "/api/mal/progress", ProgressRequest{AnimeID: 52991, Episodes: 5})
	require.Equal(http.StatusOK, w.Code)
	status := decode[mal.ListStatus](t, w)
	require.Equal(5, status.NumEpisodesWatched)
}
