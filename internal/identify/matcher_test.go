package identify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSearcher answers from a fixed table and records every query it sees.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]*Candidate
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

func candidate(english, romaji string) *Candidate {
	c := &Candidate{}
	if english != "" {
		c.English = stringPtr(english)
	}
	if romaji != "" {
		c.Romaji = stringPtr(romaji)
	}
	return c
}

func TestResolveFirstWord(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	searcher := &fakeSearcher{results: map[string]*Candidate{
		"Jujutsu": candidate("Jujutsu Kaisen", "Jujutsu Kaisen"),
	}}

	result, err := NewMatcher(searcher).Resolve(context.Background(), "Jujutsu Kaisen")
	require.NoError(err)
	require.NotNil(result)
	require.Equal("Jujutsu", result.MatchedQuery)
	require.Equal(1, result.WordsUsed)
	require.Equal(2, result.TotalWords)
	require.Equal("Jujutsu Kaisen", result.Candidate.DisplayTitle())
	require.Equal([]string{"Jujutsu"}, searcher.queries)
}

func TestResolveWidensPastRejectedCandidates(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	searcher := &fakeSearcher{results: map[string]*Candidate{
		"Spy":          candidate("Totally Spies!", ""),
		"Spy x Family": candidate("SPY x FAMILY", "Spy x Family"),
	}}

	result, err := NewMatcher(searcher).Resolve(context.Background(), "Spy x Family")
	require.NoError(err)
	require.NotNil(result)
	require.Equal("Spy x Family", result.MatchedQuery)
	require.Equal(3, result.WordsUsed)
	require.Equal(3, result.TotalWords)
	require.Equal([]string{"Spy", "Spy x", "Spy x Family"}, searcher.queries)
}

func TestResolveNoMatch(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	searcher := &fakeSearcher{results: map[string]*Candidate{
		"Random Movie": candidate("Something Else", ""),
	}}

	result, err := NewMatcher(searcher).Resolve(context.Background(), "Random Movie Title")
	require.NoError(err)
	require.Nil(result)
	require.Equal([]string{"Random", "Random Movie", "Random Movie Title"}, searcher.queries)
}

func TestResolveEmpty(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	searcher := &fakeSearcher{}
	m := NewMatcher(searcher)

	for _, text := range []string{"", "   ", "\t\n"} {
		result, err := m.Resolve(context.Background(), text)
		require.NoError(err)
		require.Nil(result)
	}
	require.Empty(searcher.queries)
}

func TestResolveCollapsesWhitespace(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	searcher := &fakeSearcher{results: map[string]*Candidate{
		"Attack on": candidate("Attack on Titan", "Shingeki no Kyojin"),
	}}

	result, err := NewMatcher(searcher).Resolve(context.Background(), "  Attack   on\tTitan ")
	require.NoError(err)
	require.NotNil(result)
	require.Equal("Attack on", result.MatchedQuery)
	require.Equal(2, result.WordsUsed)
	require.Equal(3, result.TotalWords)
	require.Equal([]string{"Attack", "Attack on"}, searcher.queries)
}

func TestResolveSearchErrorStopsWidening(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	transport := errors.New("connection refused")
	searcher := &fakeSearcher{errs: map[string]error{"Sousou no": transport}}

	result, err := NewMatcher(searcher).Resolve(context.Background(), "Sousou no Frieren")
	require.Nil(result)
	require.Error(err)
	require.ErrorIs(err, ErrSearchFailed)
	require.ErrorIs(err, transport)

	var searchErr *SearchError
	require.ErrorAs(err, &searchErr)
	require.Equal("Sousou no", searchErr.Query)
	require.Contains(err.Error(), "connection refused")

	require.Equal([]string{"Sousou", "Sousou no"}, searcher.queries)
}

func TestResolveReportsSteps(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	searcher := &fakeSearcher{results: map[string]*Candidate{
		"Spy":          candidate("Totally Spies!", ""),
		"Spy x Family": candidate("SPY x FAMILY", ""),
	}}

	var steps []Step
	m := NewMatcher(searcher)
	m.OnStep = func(s Step) { steps = append(steps, s) }

	_, err := m.Resolve(context.Background(), "Spy x Family")
	require.NoError(err)
	require.Len(steps, 3)
	require.True(steps[0].Found)
	require.False(steps[0].Accepted)
	require.False(steps[1].Found)
	require.True(steps[2].Accepted)
	require.Equal(3, steps[2].WordsUsed)
}

func TestResolveBounds(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	titles := []string{
		"One",
		"Two Words",
		"Sousou no Frieren",
		"Kaguya sama Love is War Ultra Romantic",
		"a b c d e f g h i j",
	}

	for _, title := range titles {
		words := strings.Fields(title)
		for accept := 0; accept <= len(words)+1; accept++ {
			results := map[string]*Candidate{}
			if accept >= 1 && accept <= len(words) {
				query := strings.Join(words[:accept], " ")
				results[query] = candidate(title, "")
			}
			searcher := &fakeSearcher{results: results}

			result, err := NewMatcher(searcher).Resolve(context.Background(), title)
			require.NoError(err)
			require.LessOrEqual(len(searcher.queries), len(words))

			msg := fmt.Sprintf("title %q accept %d", title, accept)
			if result == nil {
				require.Equal(len(words), len(searcher.queries), msg)
				continue
			}
			require.GreaterOrEqual(result.WordsUsed, 1, msg)
			require.LessOrEqual(result.WordsUsed, result.TotalWords, msg)
			require.Equal(len(words), result.TotalWords, msg)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		name      string
		candidate Candidate
		words     []string
		expected  bool
	}{
		{"english match", *candidate("Attack on Titan", ""), []string{"attack", "on"}, true},
		{"romaji match", *candidate("", "Shingeki no Kyojin"), []string{"Shingeki", "no"}, true},
		{"words split across fields", *candidate("Attack on Titan", "Shingeki no Kyojin"), []string{"Attack", "Kyojin"}, true},
		{"case insensitive", *candidate("SPY x FAMILY", ""), []string{"spy", "X", "Family"}, true},
		{"substring counts", *candidate("Frieren: Beyond Journey's End", ""), []string{"Frier"}, true},
		{"missing word", *candidate("Totally Spies!", ""), []string{"Spy"}, false},
		{"no titles", Candidate{}, []string{"Anything"}, false},
		{"no words", Candidate{}, nil, true},
	}

	for _, tc := range tests {
		require.Equal(tc.expected, Validate(tc.candidate, tc.words), tc.name)
	}
}
