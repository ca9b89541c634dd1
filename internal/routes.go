package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "citewatch/api/v1"
	"citewatch/internal/analytics"
	"citewatch/internal/config"
	"citewatch/internal/content"
	"citewatch/internal/events"
)

// The tracking script and server-side clients post from any origin.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,HEAD,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent, X-Forwarded-User-Agent, If-None-Match",
}

// RouteOptions carries the collaborators that are built outside the server.
type RouteOptions struct {
	Config    *config.Config
	Content   content.Resolver
	Publisher events.Publisher
	Version   string
}

// MountAppRoutes mounts the routes with the global config and no broker.
func MountAppRoutes(srv *cartridge.Server) {
	MountRoutes(RouteOptions{})(srv)
}

// MountRoutes returns a cartridge route mount function for opts.
func MountRoutes(opts RouteOptions) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		cfg := opts.Config
		if cfg == nil {
			cfg = config.GetConfig()
		}
		handler := newHandler(srv, cfg, opts)

		// Rate limiting would interfere with tests and local development
		conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
			return func(c *fiber.Ctx) error {
				if cfg.IsProduction() {
					return limiter(c)
				}
				return c.Next()
			}
		}

		// 70 requests per minute per IP
		publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(70),
			cartridgemiddleware.WithDuration(time.Minute),
		))

		// Server-side clients send no Sec-Fetch-Site header
		ingestConfig := &cartridge.RouteConfig{
			EnableCORS:         true,
			WriteConcurrency:   false,
			CustomMiddleware:   []fiber.Handler{publicRateLimiter},
			CORSConfig:         publicCORSConfig,
			EnableSecFetchSite: cartridge.Bool(false),
		}

		probeConfig := &cartridge.RouteConfig{
			EnableCORS:         true,
			CORSConfig:         publicCORSConfig,
			EnableSecFetchSite: cartridge.Bool(false),
		}

		prefix := cfg.APIPrefix()

		srv.Post(prefix+"/track-citation", wrap(handler.TrackCitation), ingestConfig)
		srv.Options(prefix+"/track-citation", noContent, ingestConfig)
		srv.Post(cfg.FallbackPath, wrap(handler.Fallback), ingestConfig)
		srv.Options(cfg.FallbackPath, noContent, ingestConfig)

		srv.Get(prefix+"/health", wrap(handler.Health), probeConfig)
		srv.Head(prefix+"/health", wrap(handler.Health), probeConfig)
		srv.Get(prefix+"/diagnostics", wrap(handler.Diagnostics), probeConfig)
		srv.Get(prefix+"/stats", wrap(handler.Stats), ingestConfig)
	}
}

func newHandler(srv *cartridge.Server, cfg *config.Config, opts RouteOptions) *v1.Handler {
	logger := srv.GetLogger()
	store := events.NewGormStore(srv.GetDBManager(), logger)

	resolver := opts.Content
	if resolver == nil {
		resolver = content.NopResolver{}
	}

	recorderOpts := []events.RecorderOption{events.WithResolver(resolver)}
	if opts.Publisher != nil {
		recorderOpts = append(recorderOpts, events.WithPublisher(opts.Publisher))
	}

	return v1.NewHandler(v1.HandlerOptions{
		Recorder:      events.NewRecorder(store, logger, recorderOpts...),
		Engine:        analytics.NewEngine(store, analytics.WithContent(resolver)),
		Store:         store,
		Namespace:     cfg.Namespace(),
		Version:       opts.Version,
		BrokerEnabled: opts.Publisher != nil,
		Logger:        logger,
	})
}

func wrap(h fiber.Handler) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		return h(ctx.Ctx)
	}
}

func noContent(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}
