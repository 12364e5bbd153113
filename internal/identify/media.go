package identify

import (
	"path/filepath"
	"strings"
)

// videoExtensions is ordered so suffix checks behave the same on every run.
var videoExtensions = []string{
	".mkv", ".mp4", ".avi", ".webm", ".m4v", ".mov", ".wmv", ".flv",
}

// IsVideoFile checks if the file is a video file based on extension
func IsVideoFile(path string) bool {
	ext := filepath.Ext(path)
	for _, v := range videoExtensions {
		if strings.EqualFold(ext, v) {
			return true
		}
	}
	return false
}

// splitVideoExt splits a trailing video extension (matched case-insensitively)
// off s. ext keeps its original spelling; it is "" when s has none.
func splitVideoExt(s string) (base, ext string) {
	for _, v := range videoExtensions {
		if hasSuffixFold(s, v) {
			cut := len(s) - len(v)
			return s[:cut], s[cut:]
		}
	}
	return s, ""
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// lastIndexFold is a case-insensitive strings.LastIndex that reports byte
// offsets into s itself, so the result is safe to slice s with even when
// lower-casing would change the byte length.
func lastIndexFold(s, substr string) int {
	n := len(substr)
	if n == 0 {
		return len(s)
	}
	for i := len(s) - n; i >= 0; i-- {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
