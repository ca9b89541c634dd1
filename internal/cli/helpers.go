package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"citewatch/internal/config"
	"citewatch/internal/database"
	"citewatch/pkg/tracker"
)

func newNegotiator(g *GlobalFlags) (*tracker.Negotiator, error) {
	probeTimeout := tracker.DefaultProbeTimeout
	if g.Timeout > 0 && g.Timeout < probeTimeout {
		probeTimeout = g.Timeout
	}
	return tracker.New(tracker.Config{
		BaseURL:      g.BaseURL,
		Namespace:    g.Namespace,
		FallbackPath: g.FallbackPath,
		ProbeTimeout: probeTimeout,
		SendTimeout:  g.Timeout,
		UserAgent:    "citectl",
		Logger:       g.logger(),
	})
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatLatency(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printRow(out io.Writer, label string, value any) {
	fmt.Fprintf(out, "%-16s %v\n", label+":", value)
}

// openLocalDB opens the database configured through CITEWATCH_* variables.
func openLocalDB(g *GlobalFlags) (*database.DBManager, error) {
	dbManager := database.NewDBManager(config.GetConfig(), g.logger())
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return dbManager, nil
}

func closeDB(dm *database.DBManager) {
	if db := dm.GetConnection(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
