package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"socialrss/feed"
	"socialrss/provider"
	"socialrss/replay"
)

type ServerConfig struct {

	// The hostname to use for the server
	Hostname string

	// Item cap applied to every assembled feed
	MaxItems int

	// Provider clients; a nil client leaves its route unregistered
	Twitter provider.Client
	VK      provider.Client
}

var startedAt = time.Now()

// Returns a fiber.App instance to be used as an HTTP server for the
// social-rss feeds
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	if config.Twitter != nil {
		app.Get("/twitter.rss", feedHandler(config.Twitter, config.MaxItems))
	}
	if config.VK != nil {
		app.Get("/vk.rss", feedHandler(config.VK, config.MaxItems))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		providers := []string{}
		if config.Twitter != nil {
			providers = append(providers, config.Twitter.Name())
		}
		if config.VK != nil {
			providers = append(providers, config.VK.Name())
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"providers": providers,
			"uptime":    time.Since(startedAt).String(),
		})
	})

	metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metrics(c.Context())
		return nil
	})

	return app
}

// feedHandler assembles one provider feed and renders it as RSS. Errors
// propagate from the pipeline unchanged and are mapped to a status code
// here; no partial or empty RSS is returned on failure.
func feedHandler(client provider.Client, maxItems int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := feed.Assemble(c.Context(), client, maxItems)
		if err != nil {
			status, label := statusForError(err)
			log.WithFields(log.Fields{
				"provider": client.Name(),
				"kind":     label,
				"error":    err,
			}).Error("Failed to assemble feed")
			return c.Status(status).SendString(label)
		}

		rss := feed.Render(feed.ChannelFor(client.Name()), items)
		c.Set(fiber.HeaderContentType, "application/rss+xml; charset=utf-8")
		return c.SendString(rss)
	}
}

// statusForError maps a propagated error kind to an HTTP status and a
// stable label: 502 for upstream-origin failures, 500 for everything
// internal (including replay misses).
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, provider.ErrAuthentication):
		return fiber.StatusBadGateway, "AuthenticationError"
	case errors.Is(err, provider.ErrRateLimited):
		return fiber.StatusBadGateway, "RateLimitExceeded"
	case errors.Is(err, provider.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway, "UpstreamUnavailable"
	case errors.Is(err, replay.ErrMiss):
		return fiber.StatusInternalServerError, "ReplayMiss"
	default:
		return fiber.StatusInternalServerError, "InternalError"
	}
}
