package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"citewatch/internal/analytics"
	"citewatch/internal/events"
	"citewatch/internal/pkg/platforms"
)

type statsJSON struct {
	Overview  *analytics.Overview        `json:"overview"`
	Daily     []analytics.DailyBucket    `json:"daily"`
	Platforms []analytics.PlatformRollup `json:"platforms"`
}

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	reader := c.reader
	if reader == nil {
		dbManager, err := openLocalDB(c.globals)
		if err != nil {
			return err
		}
		defer closeDB(dbManager)
		reader = events.NewGormStore(dbManager, c.globals.logger())
	}
	return c.run(context.Background(), analytics.NewEngine(reader))
}

func (c *StatsCommand) run(ctx context.Context, engine *analytics.Engine) error {
	if c.Days < 1 {
		return fmt.Errorf("--days must be positive")
	}

	var filter analytics.Filter
	if c.Platform != "" {
		def, ok := platforms.Lookup(c.Platform)
		if !ok {
			return fmt.Errorf("unknown platform %q", c.Platform)
		}
		filter.Platform = def.Platform
	}

	overview, err := engine.Overview(ctx, filter)
	if err != nil {
		return fmt.Errorf("overview: %w", err)
	}
	daily, err := engine.DailyTrendFor(ctx, c.Days, filter)
	if err != nil {
		return fmt.Errorf("daily trend: %w", err)
	}
	rollups, err := engine.PlatformRollups(ctx, filter)
	if err != nil {
		return fmt.Errorf("platform rollups: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return writeJSON(c.out, statsJSON{Overview: overview, Daily: daily, Platforms: rollups})
	}

	var citations, crawls int
	for _, bucket := range daily {
		citations += bucket.CitationCount
		crawls += bucket.CrawlCount
	}

	fmt.Fprintln(c.out, "Citation Overview")
	fmt.Fprintln(c.out, "=================")
	printRow(c.out, "Citations", overview.TotalCitations)
	printRow(c.out, "Crawls", overview.TotalCrawls)
	printRow(c.out, "Citation rate", fmt.Sprintf("%.1f%%", overview.CitationRate))
	printRow(c.out, "Queries", fmt.Sprintf("%d (%d%%)", overview.QueriesCaptured, overview.CaptureRate))
	printRow(c.out, "Platforms", overview.PlatformCount)
	printRow(c.out, fmt.Sprintf("Last %dd", c.Days), fmt.Sprintf("%d citations, %d crawls", citations, crawls))

	if len(rollups) == 0 {
		return nil
	}

	fmt.Fprintln(c.out)
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tCITATIONS\tSHARE\tQUERIES\tPER DAY\tLAST SEEN")
	for _, r := range rollups {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%d%%\t%.1f\t%s\n",
			r.Platform, r.Count, r.PercentOfTotal, r.CaptureRate, r.AvgPerDay, r.LastSeen.Format("2006-01-02"))
	}
	return tw.Flush()
}
