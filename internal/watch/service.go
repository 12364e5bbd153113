package watch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shapedtime/playon/internal/config"
	"github.com/shapedtime/playon/internal/detect"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/logging"
)

// Detector is the part of detect.Detector the service polls.
type Detector interface {
	Detect(ctx context.Context) detect.Detection
}

// Recorder persists watch events.
type Recorder interface {
	Record(ctx context.Context, e *history.Event) error
}

// Status values reported by the service
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusError   = "error"
)

// Status is a snapshot of the polling loop.
type Status struct {
	State     string         `json:"state"`
	Polls     int            `json:"polls"`
	Recorded  int            `json:"recorded"`
	LastPoll  time.Time      `json:"last_poll"`
	LastEvent *history.Event `json:"last_event,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// episodeKey identifies "the same thing being watched".
type episodeKey struct {
	title   string
	season  int
	episode int
}

// Service polls the foreground window and records a watch event whenever the
// detected (title, season, episode) changes, or when the same episode is
// still playing after MinRepeat.
type Service struct {
	mu       sync.RWMutex
	config   config.WatchConfig
	detector Detector
	recorder Recorder
	now      func() time.Time

	// OnRecord, when set, is called after each recorded event.
	OnRecord func(history.Event)

	lastKey      *episodeKey
	lastRecorded time.Time
	status       Status

	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
	log      zerolog.Logger
}

// NewService creates a new watch service
func NewService(cfg config.WatchConfig, detector Detector, recorder Recorder) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Service{
		config:   cfg,
		detector: detector,
		recorder: recorder,
		now:      time.Now,
		status:   Status{State: StatusPending},
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		log:      logging.Component("watch"),
	}
}

// Start begins the background polling loop
func (s *Service) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.status.State = StatusRunning
	s.mu.Unlock()

	s.log.Info().
		Dur("interval", s.config.Interval).
		Dur("min_repeat", s.config.MinRepeat).
		Msg("watch service started")
	go s.pollLoop()
}

// Stop halts polling and waits for an in-flight poll to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.status.State = StatusStopped
	s.mu.Unlock()

	close(s.stopChan)
	if started {
		<-s.done
	}
	s.log.Info().Msg("watch service stopped")
}

// Status returns current polling status
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.LastEvent != nil {
		e := *st.LastEvent
		st.LastEvent = &e
	}
	return st
}

func (s *Service) pollLoop() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.Poll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll runs one detection and records an event when warranted. It reports
// the recorded event, or nil.
func (s *Service) Poll(ctx context.Context) *history.Event {
	det := s.detector.Detect(ctx)
	now := s.now()

	s.mu.Lock()
	s.status.Polls++
	s.status.LastPoll = now
	s.mu.Unlock()

	if det.Status != detect.StatusDetected || det.Parsed == nil || det.Parsed.Title == nil {
		return nil
	}

	key := keyFor(det)
	if !s.shouldRecord(key, now) {
		return nil
	}

	event := NewEvent(det, now)
	if err := s.recorder.Record(ctx, event); err != nil {
		s.log.Error().Err(err).Str("title", det.WindowTitle).Msg("failed to record watch event")
		s.mu.Lock()
		if s.status.State == StatusRunning {
			s.status.State = StatusError
		}
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.lastKey = &key
	s.lastRecorded = now
	s.status.Recorded++
	s.status.LastEvent = event
	s.status.LastError = ""
	if s.status.State == StatusError {
		s.status.State = StatusRunning
	}
	s.mu.Unlock()

	s.log.Info().
		Str("title", key.title).
		Int("season", key.season).
		Int("episode", key.episode).
		Str("player", det.Player.String()).
		Msg("recorded watch event")

	if s.OnRecord != nil {
		s.OnRecord(*event)
	}
	return event
}

func (s *Service) shouldRecord(key episodeKey, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastKey == nil || *s.lastKey != key {
		return true
	}
	return s.config.MinRepeat > 0 && now.Sub(s.lastRecorded) >= s.config.MinRepeat
}

func keyFor(det detect.Detection) episodeKey {
	key := episodeKey{title: detect.CacheKey(det.Parsed.TitleText())}
	if det.Parsed.Season != nil {
		key.season = *det.Parsed.Season
	}
	if det.Parsed.Episode != nil {
		key.episode = *det.Parsed.Episode
	}
	return key
}

// NewEvent converts a detection into a history event.
func NewEvent(det detect.Detection, at time.Time) *history.Event {
	e := &history.Event{
		WindowTitle: det.WindowTitle,
		Player:      det.Player.String(),
		DetectedAt:  at,
	}
	if det.Parsed != nil {
		e.Title = det.Parsed.Title
		e.Season = det.Parsed.Season
		e.Episode = det.Parsed.Episode
	}
	if m := det.Match; m != nil {
		id, query := m.Candidate.ID, strings.TrimSpace(m.MatchedQuery)
		used, total := m.WordsUsed, m.TotalWords
		if id != 0 {
			e.CatalogID = &id
		}
		e.CatalogEnglish = m.Candidate.English
		e.CatalogRomaji = m.Candidate.Romaji
		e.MatchedQuery = &query
		e.WordsUsed = &used
		e.TotalWords = &total
	}
	return e
}
