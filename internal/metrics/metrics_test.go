package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shapedtime/playon/internal/cache"
	"github.com/shapedtime/playon/internal/identify"
)

type stubSearcher struct {
	results map[string]*identify.Candidate
	err     error
}

func (s stubSearcher) Search(_ context.Context, query string) (*identify.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func TestInstrumentSearcher(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	m := New(prometheus.NewRegistry())
	english := "Jujutsu Kaisen"
	s := m.InstrumentSearcher(stubSearcher{results: map[string]*identify.Candidate{
		"Jujutsu": {English: &english},
	}})

	_, err := s.Search(context.Background(), "Jujutsu")
	require.NoError(err)
	_, err = s.Search(context.Background(), "Nothing")
	require.NoError(err)

	failing := m.InstrumentSearcher(stubSearcher{err: errors.New("timeout")})
	_, err = failing.Search(context.Background(), "Jujutsu")
	require.Error(err)

	require.Equal(1.0, testutil.ToFloat64(m.CatalogSearches.WithLabelValues(ResultFound)))
	require.Equal(1.0, testutil.ToFloat64(m.CatalogSearches.WithLabelValues(ResultNotFound)))
	require.Equal(1.0, testutil.ToFloat64(m.CatalogSearches.WithLabelValues(ResultError)))
	require.Equal(1, testutil.CollectAndCount(m.CatalogSearchDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	var m *Metrics
	s := stubSearcher{}
	require.Equal(identify.Searcher(s), m.InstrumentSearcher(s))
	m.ObserveDetection("detected")
	m.ObserveMatch(&identify.MatchResult{WordsUsed: 1})
}

func TestObserveDetectionAndMatch(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	m := New(prometheus.NewRegistry())
	m.ObserveDetection("detected")
	m.ObserveDetection("detected")
	m.ObserveDetection("no_window")
	m.ObserveMatch(&identify.MatchResult{WordsUsed: 2, TotalWords: 3})
	m.ObserveMatch(nil)

	require.Equal(2.0, testutil.ToFloat64(m.Detections.WithLabelValues("detected")))
	require.Equal(1.0, testutil.ToFloat64(m.Detections.WithLabelValues("no_window")))

	expected := `
# HELP playon_match_words_used Number of title words needed before a candidate validated.
# TYPE playon_match_words_used histogram
playon_match_words_used_bucket{le="1"} 0
playon_match_words_used_bucket{le="2"} 1
playon_match_words_used_bucket{le="3"} 1
playon_match_words_used_bucket{le="4"} 1
playon_match_words_used_bucket{le="5"} 1
playon_match_words_used_bucket{le="6"} 1
playon_match_words_used_bucket{le="8"} 1
playon_match_words_used_bucket{le="10"} 1
playon_match_words_used_bucket{le="+Inf"} 1
playon_match_words_used_sum 2
playon_match_words_used_count 1
`
	require.NoError(testutil.CollectAndCompare(m.MatchWordsUsed, strings.NewReader(expected)))
}

func TestCacheCollector(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	lookup := cache.New[identify.MatchResult](time.Minute)
	lookup.Set("frieren", &identify.MatchResult{WordsUsed: 1, TotalWords: 1})
	lookup.Set("unknown", nil)
	lookup.Get("frieren")
	lookup.Get("missing")

	expected := `
# HELP playon_cache_entries Entries stored in the lookup cache, expired ones included.
# TYPE playon_cache_entries gauge
playon_cache_entries 2
# HELP playon_cache_hits_total Lookups answered from the cache.
# TYPE playon_cache_hits_total counter
playon_cache_hits_total 1
# HELP playon_cache_misses_total Lookups that had to resolve against the catalog.
# TYPE playon_cache_misses_total counter
playon_cache_misses_total 1
`
	require.NoError(testutil.CollectAndCompare(NewCacheCollector(lookup), strings.NewReader(expected)))
}
