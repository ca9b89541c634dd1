package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/karloscodes/cartridge"

	"citewatch/internal/config"
	"citewatch/internal/events"
	"citewatch/internal/jobs"
	"citewatch/internal/seeder"
)

// Execute implements the go-flags Commander interface for SeedCommand.
func (c *SeedCommand) Execute(args []string) error {
	dbManager, err := openLocalDB(c.globals)
	if err != nil {
		return err
	}
	defer closeDB(dbManager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, dbManager)
}

func (c *SeedCommand) run(ctx context.Context, dbManager cartridge.DBManager) error {
	logger := c.globals.logger()
	recorder := events.NewRecorder(events.NewGormStore(dbManager, logger), logger)

	result, err := seeder.NewSeeder(recorder, logger).Run(ctx, seeder.Options{
		Site:   c.Site,
		Visits: c.Visits,
		Days:   c.Days,
		Seed:   c.Seed,
	})
	if err != nil {
		return err
	}

	if c.globals.JSON {
		return writeJSON(c.out, result)
	}
	printRow(c.out, "Generated", result.Generated)
	printRow(c.out, "Recorded", result.Recorded)
	printRow(c.out, "Dropped", result.Dropped)
	return nil
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	dbManager, err := openLocalDB(c.globals)
	if err != nil {
		return err
	}
	defer closeDB(dbManager)

	if c.Days == 0 {
		c.Days = config.GetConfig().RetentionDays
	}
	return c.run(context.Background(), dbManager)
}

func (c *PruneCommand) run(ctx context.Context, dbManager cartridge.DBManager) error {
	if c.Days <= 0 {
		fmt.Fprintln(c.out, "No retention period set; pass --days to prune.")
		return nil
	}

	logger := c.globals.logger()
	store := events.NewGormStore(dbManager, logger)

	before, err := store.CountEvents(ctx)
	if err != nil {
		return err
	}
	if err := jobs.NewRetentionJob(store, c.Days, logger).Run(ctx); err != nil {
		return err
	}
	after, err := store.CountEvents(ctx)
	if err != nil {
		return err
	}

	if c.globals.JSON {
		return writeJSON(c.out, map[string]any{
			"retention_days": c.Days,
			"deleted":        before - after,
			"remaining":      after,
		})
	}
	fmt.Fprintf(c.out, "Deleted %d events older than %d days; %d remain.\n", before-after, c.Days, after)
	return nil
}

type statusJSON struct {
	Database    string     `json:"database"`
	Events      int64      `json:"events"`
	Oldest      *time.Time `json:"oldest,omitempty"`
	Newest      *time.Time `json:"newest,omitempty"`
	OpenConns   int        `json:"open_connections"`
	InUse       int        `json:"in_use"`
	Idle        int        `json:"idle"`
	MaxOpenConn int        `json:"max_open_connections"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	dbManager, err := openLocalDB(c.globals)
	if err != nil {
		return err
	}
	defer closeDB(dbManager)
	return c.run(context.Background(), dbManager, config.GetConfig().GetDatabasePath())
}

func (c *StatusCommand) run(ctx context.Context, dbManager cartridge.DBManager, path string) error {
	db := dbManager.GetConnection()
	if db == nil {
		return events.ErrStoreUnavailable
	}

	status := statusJSON{Database: path}
	if err := db.WithContext(ctx).Model(&events.VisitEvent{}).Count(&status.Events).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if status.Events > 0 {
		var oldest, newest events.VisitEvent
		if err := db.WithContext(ctx).Order("visit_timestamp ASC").Take(&oldest).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if err := db.WithContext(ctx).Order("visit_timestamp DESC").Take(&newest).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		oldestAt, newestAt := oldest.Timestamp.UTC(), newest.Timestamp.UTC()
		status.Oldest, status.Newest = &oldestAt, &newestAt
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	status.OpenConns = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	status.MaxOpenConn = stats.MaxOpenConnections

	if c.globals.JSON {
		return writeJSON(c.out, status)
	}
	printRow(c.out, "Database", status.Database)
	printRow(c.out, "Events", status.Events)
	if status.Oldest != nil && status.Newest != nil {
		printRow(c.out, "Oldest", status.Oldest.Format(time.RFC3339))
		printRow(c.out, "Newest", status.Newest.Format(time.RFC3339))
	}
	printRow(c.out, "Connections", fmt.Sprintf("%d open, %d in use, %d idle (max %d)",
		status.OpenConns, status.InUse, status.Idle, status.MaxOpenConn))
	return nil
}
