package history

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("history: not found")

// Event is one recorded detection.
type Event struct {
	ID          int64  `json:"id"`
	WindowTitle string `json:"window_title"`
	Player      string `json:"player"`

	Title   *string `json:"title"`
	Season  *int    `json:"season"`
	Episode *int    `json:"episode"`

	CatalogID      *int    `json:"catalog_id,omitempty"`
	CatalogEnglish *string `json:"catalog_english,omitempty"`
	CatalogRomaji  *string `json:"catalog_romaji,omitempty"`
	MatchedQuery   *string `json:"matched_query,omitempty"`
	WordsUsed      *int    `json:"words_used,omitempty"`
	TotalWords     *int    `json:"total_words,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// Token is a stored OAuth token for a catalog provider.
type Token struct {
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenFromOAuth converts an exchanged OAuth token for storage.
func TokenFromOAuth(provider string, t *oauth2.Token) Token {
	return Token{
		Provider:     provider,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    t.Expiry,
	}
}

// Expired reports whether the token is past its expiry, allowing for skew.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.Add(time.Minute).After(t.ExpiresAt)
}
