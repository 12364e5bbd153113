package identify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSearchFailed is matched by every error the Matcher returns.
var ErrSearchFailed = errors.New("catalog search failed")

// Searcher is the catalog lookup the matcher depends on. It returns the
// catalog's best guess for query, or nil when there is none.
type Searcher interface {
	Search(ctx context.Context, query string) (*Candidate, error)
}

// SearchError wraps a Searcher failure with the query that triggered it.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func (e *SearchError) Is(target error) bool { return target == ErrSearchFailed }

// Step describes a single widening step, reported to Matcher.OnStep.
type Step struct {
	Query      string
	WordsUsed  int
	TotalWords int
	Found      bool // the catalog returned a candidate
	Accepted   bool // the candidate passed validation
	Err        error
}

// Matcher resolves parsed titles against a catalog by searching with the
// first word, then the first two words and so on, accepting the first
// candidate whose titles contain every query word.
type Matcher struct {
	searcher Searcher

	// OnStep, when set, is called after every search.
	OnStep func(Step)
}

// NewMatcher creates a Matcher backed by searcher.
func NewMatcher(searcher Searcher) *Matcher {
	return &Matcher{searcher: searcher}
}

// Resolve returns the first validated match for title, nil when every word
// count was tried without one, or an error wrapping ErrSearchFailed when the
// catalog could not be queried. Searches run one at a time and are never
// retried.
func (m *Matcher) Resolve(ctx context.Context, title string) (*MatchResult, error) {
	words := strings.Fields(title)
	total := len(words)

	for n := 1; n <= total; n++ {
		query := strings.Join(words[:n], " ")

		candidate, err := m.searcher.Search(ctx, query)
		if err != nil {
			m.report(Step{Query: query, WordsUsed: n, TotalWords: total, Err: err})
			return nil, &SearchError{Query: query, Err: err}
		}
		if candidate == nil {
			m.report(Step{Query: query, WordsUsed: n, TotalWords: total})
			continue
		}

		accepted := Validate(*candidate, words[:n])
		m.report(Step{Query: query, WordsUsed: n, TotalWords: total, Found: true, Accepted: accepted})
		if !accepted {
			continue
		}

		return &MatchResult{
			Candidate:    *candidate,
			MatchedQuery: query,
			WordsUsed:    n,
			TotalWords:   total,
		}, nil
	}

	return nil, nil
}

func (m *Matcher) report(s Step) {
	if m.OnStep != nil {
		m.OnStep(s)
	}
}

// Validate reports whether every query word appears, case-insensitively, in
// the candidate's English or Romaji title.
func Validate(c Candidate, words []string) bool {
	english := lowerOrEmpty(c.English)
	romaji := lowerOrEmpty(c.Romaji)

	for _, w := range words {
		w = strings.ToLower(w)
		if !strings.Contains(english, w) && !strings.Contains(romaji, w) {
			return false
		}
	}
	return true
}

func lowerOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(*s)
}
