package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shapedtime/playon/internal/identify"
)

const namespace = "playon"

// Search outcomes used as the "result" label.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds recognition pipeline metrics for direct instrumentation.
type Metrics struct {
	CatalogSearches       *prometheus.CounterVec
	CatalogSearchDuration prometheus.Histogram
	MatchWordsUsed        prometheus.Histogram
	Detections            *prometheus.CounterVec
}

// New creates and registers pipeline metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CatalogSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "searches_total",
			Help:      "Catalog searches issued by the matcher, by result.",
		}, []string{"result"}),
		CatalogSearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "search_duration_seconds",
			Help:      "Duration of catalog search requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		MatchWordsUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "words_used",
			Help:      "Number of title words needed before a candidate validated.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Window detections, by outcome status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.CatalogSearches,
		m.CatalogSearchDuration,
		m.MatchWordsUsed,
		m.Detections,
	)

	return m
}

// ObserveMatch records how many words a successful resolution needed.
func (m *Metrics) ObserveMatch(result *identify.MatchResult) {
	if m == nil || result == nil {
		return
	}
	m.MatchWordsUsed.Observe(float64(result.WordsUsed))
}

// ObserveDetection counts a detection by status.
func (m *Metrics) ObserveDetection(status string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(status).Inc()
}

// InstrumentSearcher wraps s so every search is counted and timed.
func (m *Metrics) InstrumentSearcher(s identify.Searcher) identify.Searcher {
	if m == nil {
		return s
	}
	return &instrumentedSearcher{next: s, metrics: m}
}

type instrumentedSearcher struct {
	next    identify.Searcher
	metrics *Metrics
}

func (s *instrumentedSearcher) Search(ctx context.Context, query string) (*identify.Candidate, error) {
	start := time.Now()
	candidate, err := s.next.Search(ctx, query)
	s.metrics.CatalogSearchDuration.Observe(time.Since(start).Seconds())

	result := ResultFound
	switch {
	case err != nil:
		result = ResultError
	case candidate == nil:
		result = ResultNotFound
	}
	s.metrics.CatalogSearches.WithLabelValues(result).Inc()

	return candidate, err
}
