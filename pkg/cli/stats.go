package cli

import (
	"context"
	"database/sql"
	"flag"
	"strings"
	"time"

	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

func newStatsCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "stats",
		Description: "Print user, club, event and pending request counts",
		Flags:       flag.NewFlagSet("stats", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return rt.withDB(ctx, func(db *sql.DB) error {
			registry := prometheus.NewRegistry()
			collector := observability.NewStatsCollector(db, observability.NewMetrics(registry), rt.Logger)
			if err := collector.Collect(ctx); err != nil {
				return err
			}

			families, err := registry.Gather()
			if err != nil {
				return err
			}
			for _, family := range families {
				name := family.GetName()
				if strings.HasPrefix(name, "clubhub_db_") {
					continue
				}
				for _, metric := range family.GetMetric() {
					if metric.GetGauge() == nil || len(metric.GetLabel()) > 0 {
						continue
					}
					rt.printf("%-32s %.0f\n", strings.TrimPrefix(name, "clubhub_"), metric.GetGauge().GetValue())
				}
			}
			return nil
		})
	}
	return cmd
}
