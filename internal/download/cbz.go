// Package download fetches manga chapters and packs them into CBZ archives.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shapedtime/playon/internal/logging"
)

const (
	DefaultConcurrency = 6
	pageAttempts       = 3

	referer   = "https://weebcentral.com"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrInvalidName is returned when a manga or chapter title cannot be used as
// a path element inside the download directory.
var ErrInvalidName = errors.New("invalid file name")

// Request describes one chapter to download.
type Request struct {
	MangaTitle   string   `json:"manga_title"`
	ChapterTitle string   `json:"chapter_title"`
	URLs         []string `json:"urls"`
	Dir          string   `json:"-"`
	Concurrency  int      `json:"concurrency,omitempty"`
}

// Downloader fetches pages over HTTP.
type Downloader struct {
	client     *http.Client
	retryDelay time.Duration
	log        zerolog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithRetryDelay sets the base delay between page attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Downloader) { d.retryDelay = delay }
}

// New creates a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:     &http.Client{Timeout: 30 * time.Second},
		retryDelay: 500 * time.Millisecond,
		log:        logging.Component("download"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ChapterToCBZ downloads every page of req and writes
// <Dir>/<manga>/<chapter>.cbz with pages stored uncompressed as 001.jpg,
// 002.png and so on. It returns the archive path. On any failure no archive
// is left behind.
func (d *Downloader) ChapterToCBZ(ctx context.Context, req Request) (string, error) {
	if len(req.URLs) == 0 {
		return "", fmt.Errorf("chapter %q has no pages", req.ChapterTitle)
	}
	info, err := os.Stat(req.Dir)
	if err != nil {
		return "", fmt.Errorf("download directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("download directory %s is not a directory", req.Dir)
	}

	manga, err := safeName(req.MangaTitle)
	if err != nil {
		return "", err
	}
	chapter, err := safeName(req.ChapterTitle)
	if err != nil {
		return "", err
	}

	mangaDir := filepath.Join(req.Dir, manga)
	if err := os.MkdirAll(mangaDir, 0755); err != nil {
		return "", fmt.Errorf("create manga directory: %w", err)
	}
	target := filepath.Join(mangaDir, chapter+".cbz")

	limit := req.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	pages := make([][]byte, len(req.URLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, url := range req.URLs {
		g.Go(func() error {
			body, err := d.fetchPage(gctx, url)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			pages[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if err := writeCBZ(target, req.URLs, pages); err != nil {
		os.Remove(target)
		return "", err
	}

	d.log.Info().
		Str("manga", req.MangaTitle).
		Str("chapter", req.ChapterTitle).
		Int("pages", len(pages)).
		Str("path", target).
		Msg("chapter downloaded")

	return target, nil
}

func (d *Downloader) fetchPage(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := d.get(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(pageAttempts),
		retry.Delay(d.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.log.Debug().Err(err).Uint("attempt", n+1).Str("url", url).Msg("retrying page")
		}),
	)
	return body, err
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func writeCBZ(path string, urls []string, pages [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(f)
	for i, page := range pages {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   PageName(i, urls[i]),
			Method: zip.Store,
		})
		if err != nil {
			f.Close()
			return fmt.Errorf("add page %d: %w", i+1, err)
		}
		if _, err := w.Write(page); err != nil {
			f.Close()
			return fmt.Errorf("write page %d: %w", i+1, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	return f.Close()
}

// PageName is the archive entry for the zero-based page index.
func PageName(index int, url string) string {
	return fmt.Sprintf("%03d.%s", index+1, PageExt(url))
}

// PageExt guesses an image extension from the page URL.
func PageExt(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".png"):
		return "png"
	case strings.Contains(lower, ".webp"):
		return "webp"
	default:
		return "jpg"
	}
}

// Sanitize replaces characters that are invalid in file names.
func Sanitize(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', ':', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name))
}

// safeName sanitizes name and rejects results that would not stay a single
// path element below the download directory.
func safeName(name string) (string, error) {
	clean := Sanitize(name)
	switch clean {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}
