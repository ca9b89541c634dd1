// Package app is the embedding API of the citewatch server. Programs that
// host citewatch next to their own routes build on these types.
package app

import (
	"github.com/karloscodes/cartridge"

	"citewatch/internal"
	"citewatch/internal/config"
	"citewatch/internal/database"
)

type (
	Application  = internal.Application
	Config       = config.Config
	DBManager    = database.DBManager
	RouteOptions = internal.RouteOptions
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	return config.GetConfig()
}

// NewApp creates an application with the default routes.
func NewApp() (*Application, error) {
	return internal.NewApp()
}

// NewAppWithConfig creates an application from cfg.
func NewAppWithConfig(cfg *Config) (*Application, error) {
	return internal.NewAppWithConfig(cfg)
}

// MountRoutes returns the citewatch route mount for a host cartridge server.
func MountRoutes(opts RouteOptions) func(*cartridge.Server) {
	return internal.MountRoutes(opts)
}

// Version reports the build version.
func Version() string {
	return internal.Version
}
