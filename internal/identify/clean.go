package identify

import "strings"

// Clean strips release noise from a title fragment: the file extension,
// quality/codec tags, a leading subgroup tag and a trailing CRC hash.
func Clean(title string) string {
	title, _ = splitVideoExt(title)

	title = patterns.QualityTag.ReplaceAllString(title, "")
	title = patterns.LeadingGroup.ReplaceAllString(title, "")
	title = patterns.TrailingHash.ReplaceAllString(title, "")

	title = strings.TrimSpace(title)
	title = strings.TrimRight(title, "-")
	return strings.TrimSpace(title)
}
