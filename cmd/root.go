package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "socialrss",
		Usage: "Social network timelines as RSS feeds",
		Description: `Exposes Twitter and VK timelines as RSS 2.0 feeds over HTTP.

		The server authenticates to the upstream social APIs, fetches recent
		timeline items, normalizes them into a single feed item model and
		renders them as RSS on /twitter.rss and /vk.rss.

		An offline debug mode can record real API responses to disk and later
		replay them verbatim, so feeds can be served deterministically without
		any network access.

		Flags can generally be set via environment variables, e.g.:

		--config => SOCIALRSS_CONFIG=config/socialrss.toml
		--port => SOCIALRSS_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			recordCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
