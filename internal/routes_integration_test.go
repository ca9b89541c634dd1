package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch/internal/config"
)

func findRoute(routes []fiber.Route, method, path string) *fiber.Route {
	for idx := range routes {
		if routes[idx].Method == method && routes[idx].Path == path {
			return &routes[idx]
		}
	}
	return nil
}

func TestIngestionRoutesRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	for _, path := range []string{"/citewatch/v1/track-citation", "/ajax"} {
		route := findRoute(routes, fiber.MethodPost, path)
		require.NotNil(t, route, "expected %s to be registered", path)

		// Outside production the limiter sits behind a pass-through wrapper
		hasRateLimiter := false
		var handlerNames []string
		for _, handler := range route.Handlers {
			name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
			handlerNames = append(handlerNames, name)
			if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountRoutes.func") {
				hasRateLimiter = true
				break
			}
		}
		require.Truef(t, hasRateLimiter, "expected rate limiter middleware for %s, handlers: %v", path, handlerNames)
	}
}

func TestProbeAndReadRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	assert.NotNil(t, findRoute(routes, fiber.MethodGet, "/citewatch/v1/health"))
	assert.NotNil(t, findRoute(routes, fiber.MethodHead, "/citewatch/v1/health"))
	assert.NotNil(t, findRoute(routes, fiber.MethodGet, "/citewatch/v1/diagnostics"))
	assert.NotNil(t, findRoute(routes, fiber.MethodGet, "/citewatch/v1/stats"))
	assert.NotNil(t, findRoute(routes, fiber.MethodOptions, "/citewatch/v1/track-citation"))
}

func TestCustomNamespaceAndFallbackPath(t *testing.T) {
	cfg := *config.GetConfig()
	cfg.APINamespace = "/acme-tracking/"
	cfg.FallbackPath = "/wp-admin/admin-ajax.php"

	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountRoutes(RouteOptions{Config: &cfg}),
	})
	routes := srv.App.GetRoutes(true)

	assert.NotNil(t, findRoute(routes, fiber.MethodPost, "/acme-tracking/v1/track-citation"))
	assert.NotNil(t, findRoute(routes, fiber.MethodPost, "/wp-admin/admin-ajax.php"))
	assert.Nil(t, findRoute(routes, fiber.MethodPost, "/citewatch/v1/track-citation"))
}
