package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "playon",
		Usage: "recognize what is playing in desktop media players",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to configuration file",
				EnvVars: []string{"PLAYON_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level",
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			detectCommand,
			parseCommand,
			watchCommand,
			historyCommand,
			filesCommand,
			downloadCommand,
			authCommand,
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("playon failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
