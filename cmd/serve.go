package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"socialrss/config"
	"socialrss/provider"
	"socialrss/replay"
	"socialrss/server"
	"socialrss/twitter"
	"socialrss/vk"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the social-rss feeds",
		Description: `Starts the social-rss HTTP server.

Serves the configured provider timelines as RSS 2.0 on /twitter.rss and
/vk.rss. Provider credentials are read from the TOML configuration file
once at startup.

The replay flags select the offline debug mode: "write" records every
upstream response under the cache root, "replay" serves recorded
responses without touching the network, "live" does neither.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/socialrss.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"SOCIALRSS_CONFIG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on, overrides the config file",
				EnvVars: []string{"SOCIALRSS_PORT"},
			},
			&cli.StringFlag{
				Name:    "replay-mode",
				Usage:   "Replay cache mode (live, write or replay), overrides the config file",
				EnvVars: []string{"SOCIALRSS_REPLAY_MODE"},
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
			if ctx.Int("port") != 0 {
				cfg.Port = ctx.Int("port")
			}
			if ctx.String("replay-mode") != "" {
				cfg.Replay.Mode = ctx.String("replay-mode")
			}
			if ctx.String("replay-root") != "" {
				cfg.Replay.Root = ctx.String("replay-root")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			mode, err := replay.ParseMode(cfg.Replay.Mode)
			if err != nil {
				return err
			}
			cache, err := replay.New(mode, cfg.Replay.Root)
			if err != nil {
				return err
			}

			app := server.Server(&server.ServerConfig{
				Hostname: cfg.Hostname,
				MaxItems: cfg.MaxItems,
				Twitter:  twitterClient(cfg, cache),
				VK:       vkClient(cfg, cache),
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			var wg sync.WaitGroup
			wg.Add(1)

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				app.ShutdownWithTimeout(60 * time.Second)
				wg.Done()
			}()

			log.WithFields(log.Fields{
				"port": cfg.Port,
				"mode": mode,
			}).Info("Starting server")
			if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
				return err
			}

			wg.Wait()
			return nil
		},
	}
}

// twitterClient builds the Twitter client, or nil when no credentials
// are configured outside replay mode.
func twitterClient(cfg *config.Config, cache *replay.Cache) provider.Client {
	if cfg.Twitter.BearerToken == "" && cache.Mode() != replay.ModeReplay {
		log.Warn("No Twitter credentials configured, /twitter.rss disabled")
		return nil
	}
	return twitter.New(&twitter.Credentials{
		BearerToken: cfg.Twitter.BearerToken,
		UserID:      cfg.Twitter.UserID,
	}, cache, cfg.Twitter.PageSize)
}

func vkClient(cfg *config.Config, cache *replay.Cache) provider.Client {
	if cfg.VK.AccessToken == "" && cache.Mode() != replay.ModeReplay {
		log.Warn("No VK credentials configured, /vk.rss disabled")
		return nil
	}
	return vk.New(&vk.Credentials{
		AccessToken: cfg.VK.AccessToken,
	}, cache, cfg.VK.PageSize)
}
