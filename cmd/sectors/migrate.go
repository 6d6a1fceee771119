package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/sector.balance/internal/store"
)

func migrateCommand(args []string) error {
	if len(args) < 1 {
		printMigrateHelp(os.Stdout)
		return errors.New("missing migrate action")
	}
	if *dbPath == "" {
		return errors.New("-db is required")
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer st.Close()
	return runMigrate(st, args, os.Stdout)
}

func runMigrate(st *store.Store, args []string, out io.Writer) error {
	migrations := store.MigrationsFS()

	switch args[0] {
	case "up":
		if err := st.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")
	case "down":
		if err := st.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")
	case "status":
	case "force":
		if len(args) < 2 {
			return errors.New("usage: sectors migrate force <version>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := st.MigrateForce(migrations, v); err != nil {
			return err
		}
	case "help":
		printMigrateHelp(out)
		return nil
	default:
		printMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", args[0])
	}

	version, dirty, err := st.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	if dirty {
		fmt.Fprintln(out, "A migration failed mid-execution; inspect the database and run: sectors migrate force <version>")
	}
	return nil
}

func printMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: sectors [-db path] migrate <action>

Actions:
  up                 apply all pending migrations
  down               roll back the most recent migration
  status             show the current version and dirty flag
  force <version>    record <version> without running it (dirty-state recovery)
`)
}
