package anilist

import "github.com/shapedtime/playon/internal/identify"

// Title holds the names AniList keeps for a media entry. Any may be null.
type Title struct {
	Romaji  *string `json:"romaji"`
	English *string `json:"english"`
	Native  *string `json:"native"`
}

type CoverImage struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
}

// Anime represents an anime media entry from AniList
type Anime struct {
	ID          int        `json:"id"`
	Title       Title      `json:"title"`
	CoverImage  CoverImage `json:"coverImage"`
	Episodes    *int       `json:"episodes"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
}

// Candidate converts the entry to the matcher's candidate form.
func (a Anime) Candidate() identify.Candidate {
	cover := a.CoverImage.Large
	if cover == "" {
		cover = a.CoverImage.Medium
	}
	return identify.Candidate{
		ID:         a.ID,
		English:    a.Title.English,
		Romaji:     a.Title.Romaji,
		Native:     a.Title.Native,
		Episodes:   a.Episodes,
		Status:     a.Status,
		CoverImage: cover,
	}
}
