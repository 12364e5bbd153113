package player

import "strings"

// Kind identifies a recognized media player or the streaming/generic buckets.
type Kind string

const (
	VLC                Kind = "vlc"
	MPV                Kind = "mpv"
	MPC                Kind = "mpc"
	PotPlayer          Kind = "potplayer"
	KMPlayer           Kind = "kmplayer"
	GOMPlayer          Kind = "gom_player"
	WindowsMediaPlayer Kind = "windows_media_player"
	Browser            Kind = "browser"
	Generic            Kind = "generic"
)

// rule maps a set of lower-case needles to a Kind.
type rule struct {
	kind    Kind
	needles []string
}

// rules are checked in order and the first hit wins: desktop player names,
// then streaming sites seen in browser tabs, then bare video extensions.
var rules = []rule{
	{VLC, []string{"vlc media player"}},
	{MPV, []string{"mpv"}},
	{MPC, []string{"mpc", "media player classic"}},
	{PotPlayer, []string{"potplayer"}},
	{KMPlayer, []string{"kmplayer"}},
	{GOMPlayer, []string{"gom player"}},
	{WindowsMediaPlayer, []string{"windows media player"}},

	{Browser, []string{
		"youtube",
		"netflix",
		"prime video",
		"crunchyroll",
		"funimation",
		"hidive",
		"hianime",
		"disney+",
		"hulu",
		"twitch",
		"bilibili",
		"animepahe",
	}},

	{Generic, []string{".mkv", ".mp4", ".avi", ".webm", ".m4v", ".mov", ".wmv", ".flv"}},
}

// Classify reports which player a window title belongs to.
// ok is false for anything that is not on the allow-list (editors, file
// managers, ...); that is an expected outcome, not an error.
func Classify(title string) (kind Kind, ok bool) {
	lower := strings.ToLower(title)
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(lower, needle) {
				return r.kind, true
			}
		}
	}
	return "", false
}

// IsDesktop reports whether k is a standalone player application.
func (k Kind) IsDesktop() bool {
	switch k {
	case Browser, Generic, "":
		return false
	}
	return true
}

func (k Kind) String() string {
	return string(k)
}
