package mal

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/logging"
)

const (
	defaultBaseURL = "https://api.myanimelist.net/v2"
	authBaseURL    = "https://myanimelist.net/v1/oauth2"

	verifierLength  = 128
	verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	searchFields = "alternative_titles,main_picture,num_episodes,status"
)

var (
	// ErrUnauthorized is returned for 401 responses: a missing or expired token,
	// or an unknown client ID.
	ErrUnauthorized = errors.New("mal: unauthorized")
	ErrNotFound     = errors.New("mal: not found")
)

// Client is a MyAnimeList API v2 client
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	oauth      *oauth2.Config
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAuthBaseURL overrides the OAuth authorize/token root.
func WithAuthBaseURL(u string) Option {
	return func(c *Client) {
		u = strings.TrimRight(u, "/")
		c.oauth.Endpoint.AuthURL = u + "/authorize"
		c.oauth.Endpoint.TokenURL = u + "/token"
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps requests per minute. Non-positive values disable limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// NewClient creates a new MAL client
func NewClient(clientID, clientSecret, redirectURI string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authBaseURL + "/authorize",
				TokenURL:  authBaseURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		log: logging.Component("mal"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Anime is a search result node.
type Anime struct {
	ID                int    `json:"id"`
	Title             string `json:"title"`
	AlternativeTitles struct {
		English  string   `json:"en"`
		Japanese string   `json:"ja"`
		Synonyms []string `json:"synonyms"`
	} `json:"alternative_titles"`
	MainPicture *struct {
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"main_picture"`
	NumEpisodes int    `json:"num_episodes"`
	Status      string `json:"status"`
}

// Candidate converts the node to the matcher's candidate form. MAL's main
// title is the romanized one.
func (a Anime) Candidate() identify.Candidate {
	c := identify.Candidate{
		ID:     a.ID,
		Status: a.Status,
	}
	if a.Title != "" {
		title := a.Title
		c.Romaji = &title
	}
	if a.AlternativeTitles.English != "" {
		english := a.AlternativeTitles.English
		c.English = &english
	}
	if a.AlternativeTitles.Japanese != "" {
		native := a.AlternativeTitles.Japanese
		c.Native = &native
	}
	if a.NumEpisodes > 0 {
		episodes := a.NumEpisodes
		c.Episodes = &episodes
	}
	if a.MainPicture != nil {
		c.CoverImage = a.MainPicture.Large
		if c.CoverImage == "" {
			c.CoverImage = a.MainPicture.Medium
		}
	}
	return c
}

// ListStatus is the user's list entry after an update.
type ListStatus struct {
	Status             string `json:"status"`
	Score              int    `json:"score"`
	NumEpisodesWatched int    `json:"num_episodes_watched"`
	IsRewatching       bool   `json:"is_rewatching"`
	UpdatedAt          string `json:"updated_at"`
}

// SearchAnime searches anime by title using the client ID, no user token.
func (c *Client) SearchAnime(ctx context.Context, query string, limit int) ([]Anime, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", searchFields)

	var result struct {
		Data []struct {
			Node Anime `json:"node"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/anime?"+params.Encode(), "", nil, &result); err != nil {
		return nil, err
	}

	anime := make([]Anime, 0, len(result.Data))
	for _, d := range result.Data {
		anime = append(anime, d.Node)
	}
	return anime, nil
}

// Search returns MAL's top result for query as a match candidate.
func (c *Client) Search(ctx context.Context, query string) (*identify.Candidate, error) {
	results, err := c.SearchAnime(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	candidate := results[0].Candidate()
	return &candidate, nil
}

// UpdateAnimeProgress sets the watched episode count on the user's list.
// status is optional (watching, completed, on_hold, dropped, plan_to_watch).
func (c *Client) UpdateAnimeProgress(ctx context.Context, accessToken string, animeID, episodes int, status string) (*ListStatus, error) {
	form := url.Values{}
	form.Set("num_watched_episodes", strconv.Itoa(episodes))
	if status != "" {
		form.Set("status", status)
	}

	endpoint := fmt.Sprintf("/anime/%d/my_list_status", animeID)
	out := &ListStatus{}
	if err := c.do(ctx, http.MethodPatch, endpoint, accessToken, form, out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewVerifier returns a random 128 character PKCE code verifier drawn from
// [A-Za-z0-9].
func NewVerifier() (string, error) {
	charsetLen := big.NewInt(int64(len(verifierCharset)))
	buf := make([]byte, verifierLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("generate verifier: %w", err)
		}
		buf[i] = verifierCharset[n.Int64()]
	}
	return string(buf), nil
}

// AuthURL returns the authorization URL. MAL only supports the plain PKCE
// method, so the challenge is the verifier itself.
func (c *Client) AuthURL(state, verifier string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", verifier),
		oauth2.SetAuthURLParam("code_challenge_method", "plain"),
	)
}

// Exchange trades an authorization code and its verifier for a token.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

// Refresh obtains a new token from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := c.oauth.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return token, nil
}

// do performs a request against the API root and decodes the JSON response
func (c *Client) do(ctx context.Context, method, endpoint, accessToken string, form url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("X-MAL-CLIENT-ID", c.clientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("method", method).Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("api request")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status: %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
