package cli

import (
	"fmt"

	"citewatch/internal/config"
)

// Execute implements the go-flags Commander interface for MigrateCommand.
func (c *MigrateCommand) Execute(args []string) error {
	dbManager, err := openLocalDB(c.globals)
	if err != nil {
		return err
	}
	defer closeDB(dbManager)

	if err := dbManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(c.out, "Migrated %s\n", config.GetConfig().GetDatabasePath())
	return nil
}
