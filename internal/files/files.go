// Package files lists local folders for the media browser.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// videoExtensions are the file types shown by ListFolder
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
}

// Item is a directory entry.
type Item struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"is_dir"`
	Size    *int64    `json:"size"` // nil for directories
	ModTime time.Time `json:"mod_time"`
}

// ListFolder returns the sub-directories and video files of dir, directories
// first, each group ordered by case-insensitive name. Hidden entries are
// skipped. A missing directory yields an error matching os.ErrNotExist.
func ListFolder(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(dir, name)
		info, err := os.Stat(full) // follows symlinks
		if err != nil {
			continue
		}

		item := Item{
			Name:    name,
			Path:    full,
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		}
		if !item.IsDir {
			if !IsVideo(name) {
				continue
			}
			size := info.Size()
			item.Size = &size
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})

	return items, nil
}

// IsVideo reports whether name has one of the listed video extensions.
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}
