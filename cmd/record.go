package cmd

import (
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"socialrss/config"
	"socialrss/provider"
	"socialrss/replay"
	"socialrss/twitter"
	"socialrss/vk"
)

func recordCmd() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Record provider responses into the replay cache",
		Description: `Fetches one timeline page per configured provider and records the
raw responses under the replay cache root.

The recorded fixtures can later be served deterministically with
"serve --replay-mode replay", without any network access. Missing
credentials are prompted for interactively and are not persisted.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/socialrss.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"SOCIALRSS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "replay-root",
				Usage:   "Replay cache directory, overrides the config file",
				EnvVars: []string{"SOCIALRSS_REPLAY_ROOT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ctx.String("replay-root") != "" {
				cfg.Replay.Root = ctx.String("replay-root")
			}

			cache, err := replay.New(replay.ModeWrite, cfg.Replay.Root)
			if err != nil {
				return err
			}

			var clients []provider.Client

			if cfg.Twitter.UserID != "" {
				if cfg.Twitter.BearerToken == "" {
					token, err := prompt.New().Ask("Twitter bearer token:").
						Input("", input.WithEchoMode(input.EchoNone))
					if err != nil {
						return err
					}
					cfg.Twitter.BearerToken = token
				}
				clients = append(clients, twitter.New(&twitter.Credentials{
					BearerToken: cfg.Twitter.BearerToken,
					UserID:      cfg.Twitter.UserID,
				}, cache, cfg.Twitter.PageSize))
			}

			if cfg.VK.AccessToken == "" {
				token, err := prompt.New().Ask("VK access token (empty to skip):").
					Input("", input.WithEchoMode(input.EchoNone))
				if err != nil {
					return err
				}
				cfg.VK.AccessToken = token
			}
			if cfg.VK.AccessToken != "" {
				clients = append(clients, vk.New(&vk.Credentials{
					AccessToken: cfg.VK.AccessToken,
				}, cache, cfg.VK.PageSize))
			}

			if len(clients) == 0 {
				return fmt.Errorf("no provider credentials available, nothing to record")
			}

			for _, client := range clients {
				timeline, err := client.FetchTimeline(ctx.Context, "")
				if err != nil {
					return fmt.Errorf("failed to record %s timeline: %w", client.Name(), err)
				}
				log.WithFields(log.Fields{
					"provider": client.Name(),
					"items":    len(timeline.Items),
					"root":     cfg.Replay.Root,
				}).Info("Recorded timeline page")
			}

			return nil
		},
	}
}
