package identify

// ParsedTitle is the structured form of a window title.
// Every field is optional; Season is only ever set together with Episode.
type ParsedTitle struct {
	Title   *string `json:"title"`
	Episode *int    `json:"episode"`
	Season  *int    `json:"season"`
}

// TitleText returns the parsed title or "" when none was isolated.
func (p ParsedTitle) TitleText() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

// QualityInfo contains quality metadata extracted from window titles
type QualityInfo struct {
	Resolution string `json:"resolution,omitempty"` // 2160p, 1080p, 720p, 480p
	Source     string `json:"source,omitempty"`     // BluRay, WEB-DL, HDTV
	Codec      string `json:"codec,omitempty"`      // HEVC, H.264, AV1
}

// Candidate is a catalog record as returned by a Searcher.
// Only English and Romaji take part in validation; the rest is carried
// through for presentation.
type Candidate struct {
	ID         int     `json:"id,omitempty"`
	English    *string `json:"english"`
	Romaji     *string `json:"romaji"`
	Native     *string `json:"native,omitempty"`
	Episodes   *int    `json:"episodes,omitempty"`
	Status     string  `json:"status,omitempty"`
	CoverImage string  `json:"cover_image,omitempty"`
}

// DisplayTitle prefers the English title and falls back to Romaji.
func (c Candidate) DisplayTitle() string {
	if c.English != nil && *c.English != "" {
		return *c.English
	}
	if c.Romaji != nil {
		return *c.Romaji
	}
	return ""
}

// MatchResult records a validated catalog match and how much of the parsed
// title was needed to find it.
type MatchResult struct {
	Candidate    Candidate `json:"candidate"`
	MatchedQuery string    `json:"matched_query"`
	WordsUsed    int       `json:"words_used"`
	TotalWords   int       `json:"total_words"`
}

func stringPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
