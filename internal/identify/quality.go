package identify

import "strings"

// ExtractQuality reports the resolution, source and codec mentioned in a
// window title. It is informational and never influences parsing.
func ExtractQuality(title string) QualityInfo {
	quality := QualityInfo{}

	if match := patterns.Resolution.FindString(title); match != "" {
		quality.Resolution = normalizeResolution(match)
	}
	if match := patterns.Source.FindString(title); match != "" {
		quality.Source = normalizeSource(match)
	}
	if match := patterns.Codec.FindString(title); match != "" {
		quality.Codec = normalizeCodec(match)
	}

	return quality
}

// normalizeResolution converts resolution to standard format
func normalizeResolution(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "2160") || upper == "4K" || upper == "UHD":
		return "2160p"
	case strings.Contains(upper, "1080"):
		return "1080p"
	case strings.Contains(upper, "720"):
		return "720p"
	case strings.Contains(upper, "480"):
		return "480p"
	default:
		return match
	}
}

func normalizeSource(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "BLURAY") || strings.Contains(upper, "BLU-RAY") || strings.Contains(upper, "BDRIP"):
		return "BluRay"
	case strings.Contains(upper, "WEB-DL") || strings.Contains(upper, "WEBDL") || strings.Contains(upper, "WEB.DL"):
		return "WEB-DL"
	case strings.Contains(upper, "WEBRIP"):
		return "WEBRip"
	case strings.Contains(upper, "HDTV"):
		return "HDTV"
	case strings.Contains(upper, "DVDRIP"):
		return "DVDRip"
	default:
		return match
	}
}

func normalizeCodec(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "265") || strings.Contains(upper, "HEVC"):
		return "HEVC"
	case strings.Contains(upper, "264") || strings.Contains(upper, "AVC"):
		return "H.264"
	case strings.Contains(upper, "AV1"):
		return "AV1"
	default:
		return match
	}
}
