// Package detect runs the recognition pipeline over desktop window titles:
// classify, normalize, parse, then resolve the title through the lookup
// cache and the progressive matcher.
package detect

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shapedtime/playon/internal/cache"
	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/logging"
	"github.com/shapedtime/playon/internal/metrics"
	"github.com/shapedtime/playon/internal/player"
	"github.com/shapedtime/playon/internal/window"
)

type Status string

const (
	StatusDetected       Status = "detected"
	StatusNotMediaPlayer Status = "not_media_player"
	StatusNoWindow       Status = "no_window"
)

// Detection is the outcome of one pass over a window title.
type Detection struct {
	Status      Status                `json:"status"`
	Player      player.Kind           `json:"player,omitempty"`
	WindowTitle string                `json:"window_title,omitempty"`
	Normalized  string                `json:"normalized,omitempty"`
	Parsed      *identify.ParsedTitle `json:"parsed,omitempty"`
	Quality     *identify.QualityInfo `json:"quality,omitempty"`
	Match       *identify.MatchResult `json:"match"`

	// MatchError is set when the catalog could not be queried. Match is nil
	// in that case and the failure is not cached.
	MatchError string `json:"match_error,omitempty"`
}

// maxParallelResolves bounds DetectAll's concurrent catalog resolutions.
const maxParallelResolves = 4

type Detector struct {
	source  window.Source
	matcher *identify.Matcher // nil disables catalog resolution
	lookup  *cache.Lookup[identify.MatchResult]
	metrics *metrics.Metrics // may be nil
	log     zerolog.Logger
}

// NewDetector wires a detector. matcher, lookup and m may each be nil.
func NewDetector(source window.Source, matcher *identify.Matcher, lookup *cache.Lookup[identify.MatchResult], m *metrics.Metrics) *Detector {
	return &Detector{
		source:  source,
		matcher: matcher,
		lookup:  lookup,
		metrics: m,
		log:     logging.Component("detector"),
	}
}

// Detect inspects the foreground window.
func (d *Detector) Detect(ctx context.Context) Detection {
	title, ok, err := d.source.ActiveTitle(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to read active window")
		ok = false
	}
	if !ok {
		return d.finish(Detection{Status: StatusNoWindow})
	}
	return d.DetectTitle(ctx, title)
}

// DetectTitle runs the pipeline over a supplied window title.
func (d *Detector) DetectTitle(ctx context.Context, raw string) Detection {
	if strings.TrimSpace(raw) == "" {
		return d.finish(Detection{Status: StatusNoWindow})
	}

	kind, ok := player.Classify(raw)
	if !ok {
		return d.finish(Detection{Status: StatusNotMediaPlayer, WindowTitle: raw})
	}

	normalized := identify.Normalize(raw)
	parsed := identify.Parse(normalized)
	quality := identify.ExtractQuality(raw)

	det := Detection{
		Status:      StatusDetected,
		Player:      kind,
		WindowTitle: raw,
		Normalized:  normalized,
		Parsed:      &parsed,
		Quality:     &quality,
	}

	match, err := d.Resolve(ctx, parsed.TitleText())
	if err != nil {
		d.log.Warn().Err(err).Str("title", parsed.TitleText()).Msg("catalog lookup failed")
		det.MatchError = err.Error()
	}
	det.Match = match

	return d.finish(det)
}

// DetectAll inspects every visible window and returns detections for those
// that belong to a media player, in window order.
func (d *Detector) DetectAll(ctx context.Context) []Detection {
	titles, err := d.source.VisibleTitles(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to list visible windows")
		return nil
	}

	var media []string
	for _, t := range titles {
		if _, ok := player.Classify(t); ok {
			media = append(media, t)
		}
	}

	results := make([]Detection, len(media))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelResolves)
	for i, t := range media {
		g.Go(func() error {
			results[i] = d.DetectTitle(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Resolve looks title up in the cache, falling back to the matcher on a
// miss. An empty title, or a detector without a matcher, resolves to nil.
func (d *Detector) Resolve(ctx context.Context, title string) (*identify.MatchResult, error) {
	key := CacheKey(title)
	if key == "" || d.matcher == nil {
		return nil, nil
	}

	resolve := func(ctx context.Context) (*identify.MatchResult, error) {
		result, err := d.matcher.Resolve(ctx, title)
		if err != nil {
			return nil, err
		}
		d.metrics.ObserveMatch(result)
		if result != nil {
			d.log.Debug().
				Str("title", title).
				Str("query", result.MatchedQuery).
				Int("words_used", result.WordsUsed).
				Int("total_words", result.TotalWords).
				Msg("resolved title")
		} else {
			d.log.Debug().Str("title", title).Msg("no catalog match")
		}
		return result, nil
	}

	if d.lookup == nil {
		return resolve(ctx)
	}
	return d.lookup.GetOrResolve(ctx, key, resolve)
}

func (d *Detector) finish(det Detection) Detection {
	d.metrics.ObserveDetection(string(det.Status))
	return det
}

// CacheKey is the lookup cache key for a parsed title.
func CacheKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
