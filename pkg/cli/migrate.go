package cli

import (
	"context"
	"database/sql"
	"flag"
	"time"

	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
)

func newMigrateCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}
	timeout := cmd.Flags.Duration("timeout", 5*time.Minute, "Maximum time to spend migrating")
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		return rt.withDB(ctx, func(db *sql.DB) error {
			applied, err := postgres.Migrate(ctx, db, rt.Logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				rt.printf("Database is up to date\n")
				return nil
			}
			rt.printf("Applied %d migration(s): %v\n", len(applied), applied)
			return nil
		})
	}
	return cmd
}
