// Package window reads the titles of top-level desktop windows.
package window

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupported is returned when the platform offers no way to read window
// titles (or the helper tools are missing).
var ErrUnsupported = errors.New("window titles are not available on this platform")

// Source reports window titles. ActiveTitle returns ok=false when there is no
// foreground window or it has no title.
type Source interface {
	ActiveTitle(ctx context.Context) (title string, ok bool, err error)
	VisibleTitles(ctx context.Context) ([]string, error)
}

// Static is a fixed Source, used for tests and for titles given on the
// command line.
type Static struct {
	Active  string
	Visible []string
}

func (s Static) ActiveTitle(context.Context) (string, bool, error) {
	if strings.TrimSpace(s.Active) == "" {
		return "", false, nil
	}
	return s.Active, true, nil
}

func (s Static) VisibleTitles(context.Context) ([]string, error) {
	if len(s.Visible) == 0 && s.Active != "" {
		return []string{s.Active}, nil
	}
	return s.Visible, nil
}

// System returns the Source backed by the current desktop.
func System() Source {
	return systemSource{}
}

// cleanTitles drops blank titles and duplicates, keeping first-seen order.
func cleanTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
