package identify

import "regexp"

// CompiledPatterns contains all precompiled regex patterns for title parsing
type CompiledPatterns struct {
	// Episode markers, tried in this order by the parser
	SeasonEpisode  *regexp.Regexp // Title S01E05, Title S1 E5
	EpisodeKeyword *regexp.Regexp // Title Episode 12, Title Ep. 12, Title Ep12
	DashNumber     *regexp.Regexp // Title - 05 [1080p], Title - 05.mkv, Title - 05

	// Title cleanup
	LeadingGroup *regexp.Regexp // [SubsPlease] at the start
	QualityTag   *regexp.Regexp // [1080p], (BD), [HEVC], (WEB-DL)
	TrailingHash *regexp.Regexp // [ABCD1234] at the end

	// Quality extraction
	Resolution *regexp.Regexp // 2160p, 4K, 1080p, 720p, 480p
	Source     *regexp.Regexp // BluRay, WEB-DL, HDTV, DVDRip
	Codec      *regexp.Regexp // x264, x265, H.264, HEVC, AV1
}

// NewCompiledPatterns creates and returns all compiled regex patterns
func NewCompiledPatterns() *CompiledPatterns {
	return &CompiledPatterns{
		// S05E12, s5e12, S05 E12, S 05 E 12
		SeasonEpisode: regexp.MustCompile(`(?i)(.+?)\s*S(\d{1,2})\s*E(\d{1,3})`),

		// Episode 12, Ep 12, Ep.12, Ep12
		EpisodeKeyword: regexp.MustCompile(`(?i)(.+?)\s*(?:Episode|Ep\.?)\s*(\d{1,3})`),

		// "- 05" followed by " [", " (", ".", or the end of the string.
		// The terminators keep compound words and resolution tags from matching.
		DashNumber: regexp.MustCompile(`(?i)(.+?)\s*-\s*(\d{1,3})(?:\s*[\[(]|\s*\.|\s*$)`),

		LeadingGroup: regexp.MustCompile(`^\s*\[[^\]]+\]\s*`),

		QualityTag: regexp.MustCompile(`(?i)[\[(]\s*(?:\d{3,4}p|BD|HEVC|x264|x265|AAC|FLAC|10bit|Hi10P|WEB-DL|WEB|BDRip|BluRay)\s*[\])]`),

		TrailingHash: regexp.MustCompile(`\s*\[[A-Fa-f0-9]{8}\]\s*$`),

		Resolution: regexp.MustCompile(`(?i)(2160|1080|720|480)p|4K|UHD`),

		Source: regexp.MustCompile(`(?i)(BluRay|Blu-Ray|BDRip|WEB-DL|WEB\.DL|WEBDL|WEBRip|HDTV|DVDRip)`),

		Codec: regexp.MustCompile(`(?i)(x264|x265|H\.?264|H\.?265|HEVC|AV1|AVC)`),
	}
}

// patterns is shared by every parse; compiled regexps are safe for
// concurrent use.
var patterns = NewCompiledPatterns()
