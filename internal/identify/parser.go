package identify

import "strconv"

// Strategy is one way of pulling a title and episode out of a normalized
// window title. Attempt reports ok=false when its pattern does not apply.
type Strategy struct {
	Name    string
	Attempt func(title string) (ParsedTitle, bool)
}

// Strategies is the parse cascade in priority order. The first strategy that
// succeeds wins; adding a format means adding an entry here.
var Strategies = []Strategy{
	{Name: "season-episode", Attempt: parseSeasonEpisode},
	{Name: "episode-keyword", Attempt: parseEpisodeKeyword},
	{Name: "dash-number", Attempt: parseDashNumber},
	{Name: "bracketed", Attempt: parseBracketed},
}

// ParseWindowTitle normalizes a raw window title and parses it.
//
// Supported formats include:
//   - [SubGroup] Anime Title - 05 [1080p].mkv - VLC media player
//   - Anime Title S02E05.mkv - mpv
//   - Anime Title Episode 12 - MPC-HC
//   - Anime_Title_-_01.mkv and Anime.Title.-.01.mkv
func ParseWindowTitle(raw string) ParsedTitle {
	return Parse(Normalize(raw))
}

// Parse runs the strategy cascade over an already normalized title. When no
// strategy applies the whole title is cleaned and returned without episode.
func Parse(normalized string) ParsedTitle {
	if parsed, _, ok := firstMatch(Strategies, normalized); ok {
		return parsed
	}
	return ParsedTitle{Title: titlePtr(Clean(normalized))}
}

// ParseWithStrategy is Parse that also reports which strategy matched
// ("fallback" when none did).
func ParseWithStrategy(normalized string) (ParsedTitle, string) {
	if parsed, name, ok := firstMatch(Strategies, normalized); ok {
		return parsed, name
	}
	return ParsedTitle{Title: titlePtr(Clean(normalized))}, "fallback"
}

func firstMatch(strategies []Strategy, title string) (ParsedTitle, string, bool) {
	for _, s := range strategies {
		if parsed, ok := s.Attempt(title); ok {
			return parsed, s.Name, true
		}
	}
	return ParsedTitle{}, "", false
}

// parseSeasonEpisode handles "Title S02E05".
func parseSeasonEpisode(title string) (ParsedTitle, bool) {
	match := patterns.SeasonEpisode.FindStringSubmatch(title)
	if match == nil {
		return ParsedTitle{}, false
	}
	season, err := strconv.Atoi(match[2])
	if err != nil {
		return ParsedTitle{}, false
	}
	episode, err := strconv.Atoi(match[3])
	if err != nil {
		return ParsedTitle{}, false
	}
	return ParsedTitle{
		Title:   titlePtr(Clean(match[1])),
		Episode: intPtr(episode),
		Season:  intPtr(season),
	}, true
}

// parseEpisodeKeyword handles "Title Episode 12" and "Title Ep. 12".
func parseEpisodeKeyword(title string) (ParsedTitle, bool) {
	match := patterns.EpisodeKeyword.FindStringSubmatch(title)
	if match == nil {
		return ParsedTitle{}, false
	}
	episode, err := strconv.Atoi(match[2])
	if err != nil {
		return ParsedTitle{}, false
	}
	return ParsedTitle{
		Title:   titlePtr(Clean(match[1])),
		Episode: intPtr(episode),
	}, true
}

// parseDashNumber handles the fansub "Title - 05 [quality]" layout.
func parseDashNumber(title string) (ParsedTitle, bool) {
	match := patterns.DashNumber.FindStringSubmatch(title)
	if match == nil {
		return ParsedTitle{}, false
	}
	episode, err := strconv.Atoi(match[2])
	if err != nil {
		return ParsedTitle{}, false
	}
	return ParsedTitle{
		Title:   titlePtr(Clean(match[1])),
		Episode: intPtr(episode),
	}, true
}

// parseBracketed drops a leading "[SubGroup]" before trying dash-number.
func parseBracketed(title string) (ParsedTitle, bool) {
	return parseDashNumber(patterns.LeadingGroup.ReplaceAllString(title, ""))
}

// titlePtr returns nil for an empty title so "no show name" stays absent.
func titlePtr(s string) *string {
	if s == "" {
		return nil
	}
	return stringPtr(s)
}
