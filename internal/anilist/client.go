package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/logging"
)

const (
	defaultEndpoint = "https://graphql.anilist.co"
	authURL         = "https://anilist.co/api/v2/oauth/authorize"
	tokenURL        = "https://anilist.co/api/v2/oauth/token"

	// DefaultRatePerMinute matches AniList's documented limit.
	DefaultRatePerMinute = 90

	// searchPageSize is how many results Search asks for before taking the first.
	searchPageSize = 5
)

// ErrNotFound is returned when AniList has no media for the request.
var ErrNotFound = errors.New("anilist: not found")

// APIError is a non-2xx response or a GraphQL errors array.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("anilist: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("anilist: status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Client is an AniList GraphQL API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	oauth      *oauth2.Config
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at another GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
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

// WithOAuth enables the authorization code flow.
func WithOAuth(clientID, clientSecret, redirectURI string) Option {
	return func(c *Client) {
		c.oauth = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	}
}

// WithTokenURL overrides the OAuth token endpoint, for tests.
func WithTokenURL(u string) Option {
	return func(c *Client) {
		if c.oauth != nil {
			c.oauth.Endpoint.TokenURL = u
		}
	}
}

// NewClient creates a new AniList client
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRatePerMinute), 1),
		log:     logging.Component("anilist"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const mediaFields = `id title { romaji english native } coverImage { large medium } episodes status description`

var (
	searchQuery = `query ($search: String, $perPage: Int) {
  Page(perPage: $perPage) {
    media(search: $search, type: ANIME) { ` + mediaFields + ` }
  }
}`

	mediaQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) { ` + mediaFields + ` }
}`
)

// SearchAnime searches anime by title, returning at most perPage results in
// AniList's relevance order.
func (c *Client) SearchAnime(ctx context.Context, query string, perPage int) ([]Anime, error) {
	var data struct {
		Page struct {
			Media []Anime `json:"media"`
		} `json:"Page"`
	}
	vars := map[string]any{"search": query, "perPage": perPage}
	if err := c.graphql(ctx, searchQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.Page.Media, nil
}

// GetAnime fetches one anime by AniList ID.
func (c *Client) GetAnime(ctx context.Context, id int) (*Anime, error) {
	var data struct {
		Media *Anime `json:"Media"`
	}
	if err := c.graphql(ctx, mediaQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Media == nil {
		return nil, ErrNotFound
	}
	return data.Media, nil
}

// Search returns AniList's top result for query as a match candidate, or nil
// when there are no results.
func (c *Client) Search(ctx context.Context, query string) (*identify.Candidate, error) {
	results, err := c.SearchAnime(ctx, query, searchPageSize)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	candidate := results[0].Candidate()
	return &candidate, nil
}

// AuthURL returns the URL the user visits to authorize the application.
func (c *Client) AuthURL(state string) (string, error) {
	if c.oauth == nil {
		return "", errors.New("anilist: oauth not configured")
	}
	return c.oauth.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if c.oauth == nil {
		return nil, errors.New("anilist: oauth not configured")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// graphql performs a GraphQL POST and decodes the data member into v
func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Interface("variables", vars).
		Msg("graphql request")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var gr graphqlResponse
	decodeErr := json.Unmarshal(raw, &gr)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			for _, e := range gr.Errors {
				apiErr.Messages = append(apiErr.Messages, e.Message)
			}
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if len(gr.Errors) > 0 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		for _, e := range gr.Errors {
			if e.Status == http.StatusNotFound {
				return ErrNotFound
			}
			apiErr.Messages = append(apiErr.Messages, e.Message)
		}
		return apiErr
	}

	if err := json.Unmarshal(gr.Data, v); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
