package mal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("client-id", "secret", "http://localhost/callback",
		WithBaseURL(srv.URL),
		WithAuthBaseURL(srv.URL+"/oauth2"),
		WithRateLimit(0),
	)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/anime", r.URL.Path)
		require.Equal("client-id", r.Header.Get("X-MAL-CLIENT-ID"))
		require.Empty(r.Header.Get("Authorization"))
		require.Equal("1", r.URL.Query().Get("limit"))
		require.Contains(r.URL.Query().Get("fields"), "alternative_titles")

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "nothing" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"node":{
			"id":52991,
			"title":"Sousou no Frieren",
			"alternative_titles":{"en":"Frieren: Beyond Journey's End","ja":"葬送のフリーレン","synonyms":[]},
			"main_picture":{"medium":"m.jpg","large":"l.jpg"},
			"num_episodes":28,
			"status":"finished_airing"
		}}]}`))
	})

	candidate, err := client.Search(context.Background(), "Sousou no")
	require.NoError(err)
	require.NotNil(candidate)
	require.Equal(52991, candidate.ID)
	require.Equal("Sousou no Frieren", *candidate.Romaji)
	require.Equal("Frieren: Beyond Journey's End", *candidate.English)
	require.Equal("葬送のフリーレン", *candidate.Native)
	require.Equal(28, *candidate.Episodes)
	require.Equal("l.jpg", candidate.CoverImage)

	candidate, err = client.Search(context.Background(), "nothing")
	require.NoError(err)
	require.Nil(candidate)
}

func TestCandidateMissingFields(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	c := Anime{ID: 1, Title: "Only Romaji"}.Candidate()
	require.Nil(c.English)
	require.Nil(c.Native)
	require.Nil(c.Episodes)
	require.Empty(c.CoverImage)
	require.Equal("Only Romaji", *c.Romaji)
}

func TestErrors(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
		case "missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	})

	_, err := client.Search(context.Background(), "unauthorized")
	require.ErrorIs(err, ErrUnauthorized)

	_, err = client.Search(context.Background(), "missing")
	require.ErrorIs(err, ErrNotFound)

	_, err = client.Search(context.Background(), "other")
	require.ErrorContains(err, "502")
	require.ErrorContains(err, "upstream down")
}

func TestUpdateAnimeProgress(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(http.MethodPatch, r.Method)
		require.Equal("/anime/52991/my_list_status", r.URL.Path)
		require.Equal("Bearer token-123", r.Header.Get("Authorization"))
		require.Equal("application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(r.ParseForm())
		require.Equal("5", r.PostForm.Get("num_watched_episodes"))
		require.Equal("watching", r.PostForm.Get("status"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"watching","score":0,"num_episodes_watched":5,"is_rewatching":false,"updated_at":"2024-01-01T00:00:00+00:00"}`))
	})

	status, err := client.UpdateAnimeProgress(context.Background(), "token-123", 52991, 5, "watching")
	require.NoError(err)
	require.Equal("watching", status.Status)
	require.Equal(5, status.NumEpisodesWatched)
}

func TestNewVerifier(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	a, err := NewVerifier()
	require.NoError(err)
	b, err := NewVerifier()
	require.NoError(err)

	require.Len(a, 128)
	require.NotEqual(a, b)
	for _, r := range a {
		require.True(strings.ContainsRune(verifierCharset, r), "unexpected rune %q", r)
	}
}

func TestAuthURL(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := NewClient("client-id", "", "http://localhost/callback")
	raw := client.AuthURL("state-1", "verifier-abc")

	u, err := url.Parse(raw)
	require.NoError(err)
	require.Equal("myanimelist.net", u.Host)
	require.Equal("/v1/oauth2/authorize", u.Path)

	q := u.Query()
	require.Equal("code", q.Get("response_type"))
	require.Equal("client-id", q.Get("client_id"))
	require.Equal("state-1", q.Get("state"))
	require.Equal("verifier-abc", q.Get("code_challenge"))
	require.Equal("plain", q.Get("code_challenge_method"))
}

func TestExchangeAndRefresh(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/oauth2/token", r.URL.Path)
		require.NoError(r.ParseForm())
		require.Equal("client-id", r.Form.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			require.Equal("the-code", r.Form.Get("code"))
			require.Equal("verifier-abc", r.Form.Get("code_verifier"))
			_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":2678400}`))
		case "refresh_token":
			require.Equal("refresh-1", r.Form.Get("refresh_token"))
			_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","token_type":"Bearer","expires_in":2678400}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	token, err := client.Exchange(context.Background(), "the-code", "verifier-abc")
	require.NoError(err)
	require.Equal("access-1", token.AccessToken)

	token, err = client.Refresh(context.Background(), token.RefreshToken)
	require.NoError(err)
	require.Equal("access-2", token.AccessToken)
	require.Equal("refresh-2", token.RefreshToken)
}
