package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/clubhub/pkg/config"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Runtime carries what commands need to reach the deployment
type Runtime struct {
	Config *config.Config
	Logger logrus.FieldLogger
	Out    io.Writer

	// OpenDB and OpenRedis are swapped out in tests
	OpenDB    func(ctx context.Context) (*sql.DB, error)
	OpenRedis func(ctx context.Context) (*redis.Client, error)
}

// NewRuntime connects commands to the database and Redis described by cfg
func NewRuntime(cfg *config.Config, logger logrus.FieldLogger) *Runtime {
	return &Runtime{
		Config: cfg,
		Logger: logger,
		Out:    os.Stdout,
		OpenDB: func(ctx context.Context) (*sql.DB, error) {
			return postgres.Open(ctx, cfg.Database.Connection())
		},
		OpenRedis: func(ctx context.Context) (*redis.Client, error) {
			if !cfg.Redis.Enabled() {
				return nil, nil
			}
			return postgres.NewRedisClient(ctx, cfg.Redis.Client())
		},
	}
}

func (rt *Runtime) printf(format string, args ...interface{}) {
	fmt.Fprintf(rt.Out, format, args...)
}

// NewRootCommand creates the root command
func NewRootCommand(rt *Runtime) *Command {
	root := &Command{
		Name:        "clubhub-admin",
		Description: "ClubHub - operator tooling for the club management API",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("clubhub-admin", flag.ContinueOnError),
	}

	root.Subcommands["migrate"] = newMigrateCommand(rt)
	root.Subcommands["create-admin"] = newCreateAdminCommand(rt)
	root.Subcommands["cache"] = newCacheCommand(rt)
	root.Subcommands["stats"] = newStatsCommand(rt)
	root.Subcommands["audit"] = newAuditCommand(rt)
	root.Subcommands["config"] = newConfigCommand(rt)

	root.Run = root.dispatch(rt.Out)
	return root
}

// Execute runs the command against args, which exclude the program name
func (c *Command) Execute(args []string) error {
	return c.Run(args)
}

func (c *Command) dispatch(out io.Writer) func(args []string) error {
	return func(args []string) error {
		if len(args) == 0 {
			return c.usage(out)
		}

		switch strings.ToLower(args[0]) {
		case "-h", "--help", "help":
			return c.usage(out)
		}

		if subcmd, ok := c.Subcommands[args[0]]; ok {
			return subcmd.Run(args[1:])
		}

		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func (rt *Runtime) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := rt.OpenDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
