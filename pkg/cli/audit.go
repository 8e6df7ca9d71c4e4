package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"time"

	"github.com/platinummonkey/clubhub/pkg/audit"
)

func newAuditCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "audit",
		Description: "Prune or export the audit trail",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("audit", flag.ContinueOnError),
	}
	cmd.Subcommands["prune"] = newAuditPruneCommand(rt)
	cmd.Subcommands["export"] = newAuditExportCommand(rt)
	cmd.Run = cmd.dispatch(rt.Out)
	return cmd
}

func newAuditPruneCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "prune",
		Description: "Delete audit events older than the retention period",
		Flags:       flag.NewFlagSet("prune", flag.ContinueOnError),
	}
	olderThan := cmd.Flags.Duration("older-than", rt.Config.Audit.Retention, "Delete events recorded before now minus this duration")
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		return rt.withDB(ctx, func(db *sql.DB) error {
			store, err := audit.NewDBLogger(db)
			if err != nil {
				return err
			}
			deleted, err := audit.NewPruner(store, *olderThan, rt.Logger).Prune(ctx)
			if err != nil {
				return err
			}
			rt.printf("Deleted %d audit events older than %s\n", deleted, *olderThan)
			return nil
		})
	}
	return cmd
}

func newAuditExportCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "export",
		Description: "Write audit events to stdout as json, csv or ndjson",
		Flags:       flag.NewFlagSet("export", flag.ContinueOnError),
	}
	format := cmd.Flags.String("format", "json", "Output format: json, csv or ndjson")
	since := cmd.Flags.Duration("since", 0, "Only export events newer than this duration (0 exports everything)")
	clubID := cmd.Flags.String("club", "", "Only export events of this club")
	userID := cmd.Flags.String("user", "", "Only export events performed by this user")
	limit := cmd.Flags.Int("limit", 10000, "Maximum number of events")
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		exportFormat, err := audit.ParseExportFormat(*format)
		if err != nil {
			return err
		}

		filter := audit.SearchFilter{ClubID: *clubID, UserID: *userID, Limit: *limit}
		if *since > 0 {
			start := time.Now().Add(-*since)
			filter.StartTime = &start
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		return rt.withDB(ctx, func(db *sql.DB) error {
			store, err := audit.NewDBLogger(db)
			if err != nil {
				return err
			}
			events, _, err := store.Search(ctx, filter)
			if err != nil {
				return err
			}
			return audit.Export(rt.Out, events, exportFormat)
		})
	}
	return cmd
}
