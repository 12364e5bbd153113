package identify

import (
	"regexp"
	"strings"
)

// playerSuffixes is the chrome media players append to their window titles,
// in priority order. Only the first one found is stripped.
var playerSuffixes = []string{
	" - VLC media player",
	" - VLC",
	" - mpv",
	" - MPC-HC",
	" - MPC-BE",
	" - Media Player Classic",
	" - Windows Media Player",
	" - PotPlayer",
	" – VLC media player", // en-dash
}

var (
	separatorReplacer = strings.NewReplacer("_", " ", ".", " ")
	whitespaceRun     = regexp.MustCompile(`\s+`)
)

// Normalize removes player chrome from a raw window title and turns filename
// separators into spaces. It never fails; the result may be empty.
func Normalize(raw string) string {
	return normalizeSeparators(StripPlayerSuffix(raw))
}

// StripPlayerSuffix truncates title at the right-most occurrence of the first
// matching player suffix and trims the remainder.
func StripPlayerSuffix(title string) string {
	for _, suffix := range playerSuffixes {
		if pos := lastIndexFold(title, suffix); pos >= 0 {
			title = title[:pos]
			break
		}
	}
	return strings.TrimSpace(title)
}

// normalizeSeparators treats "_" and "." as word separators, leaving a
// trailing video extension intact.
func normalizeSeparators(title string) string {
	base, ext := splitVideoExt(title)

	base = separatorReplacer.Replace(base)
	base = whitespaceRun.ReplaceAllString(base, " ")

	return strings.TrimSpace(base + ext)
}
