package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/shapedtime/playon/internal/config"
	"github.com/shapedtime/playon/internal/detect"
	"github.com/shapedtime/playon/internal/download"
	"github.com/shapedtime/playon/internal/files"
	"github.com/shapedtime/playon/internal/history"
	"github.com/shapedtime/playon/internal/identify"
	"github.com/shapedtime/playon/internal/mal"
	"github.com/shapedtime/playon/internal/player"
	"github.com/shapedtime/playon/internal/watch"
	"github.com/shapedtime/playon/internal/window"
)

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"}

var detectCommand = &cli.Command{
	Name:  "detect",
	Usage: "recognize the media in the foreground window",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "use this window title instead of the desktop"},
		&cli.BoolFlag{Name: "all", Usage: "inspect every visible window"},
		jsonFlag,
	},
	Action: func(c *cli.Context) error {
		var source window.Source = window.System()
		if title := c.String("title"); title != "" {
			source = window.Static{Active: title}
		}
		rt, err := setup(c, source)
		if err != nil {
			return err
		}
		defer rt.Close()

		var detections []detect.Detection
		if c.Bool("all") {
			detections = rt.detector.DetectAll(c.Context)
		} else {
			detections = []detect.Detection{rt.detector.Detect(c.Context)}
		}

		if c.Bool("json") {
			return printJSON(detections)
		}

		tw := newTable(os.Stdout, "Status", "Player", "Title", "S", "E", "Match", "Words")
		alignRight(tw, 4, 5)
		for _, d := range detections {
			row := []any{d.Status, d.Player, "-", "-", "-", "-", "-"}
			if d.Parsed != nil {
				row[2] = orDash(d.Parsed.Title)
				row[3] = orDash(d.Parsed.Season)
				row[4] = orDash(d.Parsed.Episode)
			}
			if d.Match != nil {
				row[5] = d.Match.Candidate.DisplayTitle()
				row[6] = fmt.Sprintf("%d/%d", d.Match.WordsUsed, d.Match.TotalWords)
			} else if d.MatchError != "" {
				row[5] = "error: " + d.MatchError
			}
			tw.AppendRow(row)
		}
		tw.Render()
		return nil
	},
}

var parseCommand = &cli.Command{
	Name:      "parse",
	Usage:     "parse a window title without contacting the catalog",
	ArgsUsage: "<window title>",
	Flags:     []cli.Flag{jsonFlag},
	Action: func(c *cli.Context) error {
		raw := strings.Join(c.Args().Slice(), " ")
		if strings.TrimSpace(raw) == "" {
			return cli.Exit("parse: a window title is required", 2)
		}

		kind, _ := player.Classify(raw)
		normalized := identify.Normalize(raw)
		parsed, strategy := identify.ParseWithStrategy(normalized)
		quality := identify.ExtractQuality(raw)

		if c.Bool("json") {
			return printJSON(map[string]any{
				"player":     kind,
				"normalized": normalized,
				"parsed":     parsed,
				"strategy":   strategy,
				"quality":    quality,
			})
		}

		tw := newTable(os.Stdout, "Field", "Value")
		tw.AppendRows([]table.Row{
			{"player", kind},
			{"normalized", normalized},
			{"strategy", strategy},
			{"title", orDash(parsed.Title)},
			{"season", orDash(parsed.Season)},
			{"episode", orDash(parsed.Episode)},
			{"resolution", quality.Resolution},
			{"source", quality.Source},
			{"codec", quality.Codec},
		})
		tw.Render()
		return nil
	},
}

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "poll the foreground window and record what is watched",
	Action: func(c *cli.Context) error {
		rt, err := setup(c, window.System())
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := watch.NewService(rt.cfg.Watch, rt.detector, rt.events)
		svc.OnRecord = func(e history.Event) {
			title := orDash(e.Title)
			if e.CatalogEnglish != nil {
				title = *e.CatalogEnglish
			} else if e.CatalogRomaji != nil {
				title = *e.CatalogRomaji
			}
			fmt.Printf("%s  %-10s %s S%s E%s\n",
				e.DetectedAt.Local().Format("15:04:05"), e.Player, title, orDash(e.Season), orDash(e.Episode))
		}
		svc.Start()
		<-c.Context.Done()
		svc.Stop()

		st := svc.Status()
		rt.log.Info().Int("polls", st.Polls).Int("recorded", st.Recorded).Msg("watch finished")
		return nil
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "show recently recorded watch events",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
		jsonFlag,
	},
	Action: func(c *cli.Context) error {
		rt, err := setup(c, window.Static{})
		if err != nil {
			return err
		}
		defer rt.Close()

		events, err := rt.events.Recent(c.Context, c.Int("limit"))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(events)
		}

		tw := newTable(os.Stdout, "When", "Player", "Title", "S", "E", "Catalog")
		alignRight(tw, 4, 5)
		for _, e := range events {
			catalog := "-"
			if e.CatalogEnglish != nil {
				catalog = *e.CatalogEnglish
			} else if e.CatalogRomaji != nil {
				catalog = *e.CatalogRomaji
			}
			tw.AppendRow([]any{humanize.Time(e.DetectedAt), e.Player, orDash(e.Title), orDash(e.Season), orDash(e.Episode), catalog})
		}
		tw.Render()
		return nil
	},
}

var filesCommand = &cli.Command{
	Name:      "files",
	Usage:     "list folders and video files",
	ArgsUsage: "[path]",
	Flags:     []cli.Flag{jsonFlag},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			path = "."
		}
		items, err := files.ListFolder(path)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(items)
		}

		tw := newTable(os.Stdout, "Name", "Size", "Modified")
		alignRight(tw, 2)
		for _, it := range items {
			name := it.Name
			if it.IsDir {
				name += "/"
			}
			tw.AppendRow([]any{name, sizeCell(it), humanize.Time(it.ModTime)})
		}
		tw.Render()
		return nil
	},
}

var downloadCommand = &cli.Command{
	Name:      "download",
	Usage:     "download a manga chapter into a CBZ archive",
	ArgsUsage: "<page url>...",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "manga", Required: true},
		&cli.StringFlag{Name: "chapter", Required: true},
		&cli.StringFlag{Name: "dir", Usage: "override downloads.dir"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("download: at least one page URL is required", 2)
		}
		rt, err := setup(c, window.Static{})
		if err != nil {
			return err
		}
		defer rt.Close()

		dir := rt.cfg.Downloads.Dir
		if d := c.String("dir"); d != "" {
			dir = d
		}

		path, err := download.New().ChapterToCBZ(c.Context, download.Request{
			MangaTitle:   c.String("manga"),
			ChapterTitle: c.String("chapter"),
			URLs:         c.Args().Slice(),
			Dir:          dir,
			Concurrency:  rt.cfg.Downloads.Concurrency,
		})
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var authCommand = &cli.Command{
	Name:      "auth",
	Usage:     "link an AniList or MyAnimeList account",
	ArgsUsage: "anilist|mal",
	Action: func(c *cli.Context) error {
		provider := c.Args().First()
		rt, err := setup(c, window.Static{})
		if err != nil {
			return err
		}
		defer rt.Close()

		var (
			authURL  string
			exchange func(code string) (*oauth2.Token, error)
		)
		switch provider {
		case config.ProviderAniList:
			authURL, err = rt.anilist.AuthURL("playon")
			if err != nil {
				return cli.Exit("auth: set anilist.client_id and anilist.client_secret first", 2)
			}
			exchange = func(code string) (*oauth2.Token, error) {
				return rt.anilist.ExchangeCode(c.Context, code)
			}
		case config.ProviderMAL:
			if rt.mal == nil {
				return cli.Exit("auth: set mal.client_id first", 2)
			}
			verifier, err := mal.NewVerifier()
			if err != nil {
				return err
			}
			authURL = rt.mal.AuthURL("playon", verifier)
			exchange = func(code string) (*oauth2.Token, error) {
				return rt.mal.Exchange(c.Context, code, verifier)
			}
		default:
			return cli.Exit("auth: provider must be anilist or mal", 2)
		}

		fmt.Printf("Open this URL and authorize playon:\n\n  %s\n\nPaste the code from the redirect: ", authURL)
		code, err := readLine()
		if err != nil {
			return err
		}

		tok, err := exchange(code)
		if err != nil {
			return err
		}
		if err := rt.tokens.Save(c.Context, history.TokenFromOAuth(provider, tok)); err != nil {
			return err
		}
		fmt.Printf("Linked %s account.\n", provider)
		return nil
	},
}

func readLine() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no code entered")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return "", errors.New("no code entered")
	}
	return code, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
