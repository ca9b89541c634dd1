package cli

import (
	"io"
	"time"

	"citewatch/internal/events"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	BaseURL      string        `long:"base-url" env:"CITEWATCH_BASE_URL" description:"Base URL of the citewatch server" default:"http://localhost:3000"`
	Namespace    string        `long:"namespace" env:"CITEWATCH_API_NAMESPACE" description:"API namespace" default:"citewatch"`
	FallbackPath string        `long:"fallback-path" env:"CITEWATCH_FALLBACK_PATH" description:"Path of the form fallback endpoint" default:"/ajax"`
	Timeout      time.Duration `long:"timeout" description:"Per-request timeout" default:"10s"`
	JSON         bool          `long:"json" description:"Output in JSON format"`
	Verbose      bool          `long:"verbose" description:"Enable debug logging"`
	Version      bool          `long:"version" description:"Show version and exit"`
}

// SendCommand delivers one citation through the transport negotiator.
type SendCommand struct {
	URL      string `long:"url" description:"Page URL that was visited" required:"true"`
	Platform string `long:"platform" description:"AI platform name, e.g. ChatGPT"`
	Referer  string `long:"referer" description:"Referrer of the visit"`
	Query    string `long:"query" description:"Search query, when the platform exposes it"`

	globals *GlobalFlags
	out     io.Writer
}

// TestConnectionCommand checks both transports without sending an event.
type TestConnectionCommand struct {
	globals *GlobalFlags
	out     io.Writer
}

// StatsCommand prints the overview and platform rollups from the local database.
type StatsCommand struct {
	Days     int    `long:"days" description:"Daily trend window" default:"30"`
	Platform string `long:"platform" description:"Only this platform"`

	globals *GlobalFlags
	out     io.Writer
	reader  events.Reader // injectable for testing; nil opens the configured DB
}

// MigrateCommand creates or updates the local database schema.
type MigrateCommand struct {
	globals *GlobalFlags
	out     io.Writer
}

// BenchCommand sends synthetic citations concurrently and reports latency.
type BenchCommand struct {
	Concurrency int    `long:"concurrency" short:"c" description:"Number of concurrent clients" default:"10"`
	Requests    int    `long:"requests" short:"n" description:"Total citations to send" default:"200"`
	Site        string `long:"site" description:"Site whose pages are reported as visited" default:"https://example.com"`

	globals *GlobalFlags
	out     io.Writer
}

// SeedCommand fills the local database with demo citation traffic.
type SeedCommand struct {
	Visits int    `long:"visits" description:"Number of visits to generate" default:"1000"`
	Days   int    `long:"days" description:"Spread visits over this many days" default:"30"`
	Site   string `long:"site" description:"Site whose pages are visited" default:"https://example.com"`
	Seed   uint64 `long:"seed" description:"Random seed; 0 picks one"`

	globals *GlobalFlags
	out     io.Writer
}

// PruneCommand deletes events older than the retention period.
type PruneCommand struct {
	Days int `long:"days" description:"Retention in days; defaults to CITEWATCH_RETENTION_DAYS"`

	globals *GlobalFlags
	out     io.Writer
}

// StatusCommand reports on the local database.
type StatusCommand struct {
	globals *GlobalFlags
	out     io.Writer
}
