package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EventRepository handles watch event database operations
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new watch event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, window_title, player, title, season, episode,
	catalog_id, catalog_english, catalog_romaji, matched_query, words_used, total_words, detected_at`

// Record stores e and sets its ID.
func (r *EventRepository) Record(ctx context.Context, e *Event) error {
	if e.DetectedAt.IsZero() {
		e.DetectedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_events (window_title, player, title, season, episode,
			catalog_id, catalog_english, catalog_romaji, matched_query, words_used, total_words, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.WindowTitle, e.Player, e.Title, e.Season, e.Episode,
		e.CatalogID, e.CatalogEnglish, e.CatalogRomaji, e.MatchedQuery, e.WordsUsed, e.TotalWords,
		formatTime(e.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record watch event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get watch event id: %w", err)
	}
	e.ID = id
	return nil
}

// Recent returns up to limit events, newest first.
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM watch_events ORDER BY detected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watch events: %w", err)
	}
	return events, nil
}

// Last returns the newest event or ErrNotFound.
func (r *EventRepository) Last(ctx context.Context) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM watch_events ORDER BY detected_at DESC, id DESC LIMIT 1`)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*Event, error) {
	var (
		e          Event
		title      sql.NullString
		season     sql.NullInt64
		episode    sql.NullInt64
		catalogID  sql.NullInt64
		english    sql.NullString
		romaji     sql.NullString
		query      sql.NullString
		wordsUsed  sql.NullInt64
		totalWords sql.NullInt64
		detectedAt string
	)
	err := s.Scan(&e.ID, &e.WindowTitle, &e.Player, &title, &season, &episode,
		&catalogID, &english, &romaji, &query, &wordsUsed, &totalWords, &detectedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan watch event: %w", err)
	}

	e.Title = nullString(title)
	e.Season = nullInt(season)
	e.Episode = nullInt(episode)
	e.CatalogID = nullInt(catalogID)
	e.CatalogEnglish = nullString(english)
	e.CatalogRomaji = nullString(romaji)
	e.MatchedQuery = nullString(query)
	e.WordsUsed = nullInt(wordsUsed)
	e.TotalWords = nullInt(totalWords)
	e.DetectedAt, err = parseTime(detectedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detected_at %q: %w", detectedAt, err)
	}
	return &e, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// Times are stored as fixed-width UTC text so lexical order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
