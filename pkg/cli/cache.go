package cli

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/platinummonkey/clubhub/pkg/cache"
)

var errNoSharedCache = errors.New("cache clear needs redis: the in-memory cache lives inside each server process, restart it instead")

func newCacheCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "cache",
		Description: "Manage the shared list cache",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("cache", flag.ContinueOnError),
	}
	cmd.Subcommands["clear"] = newCacheClearCommand(rt)
	cmd.Run = cmd.dispatch(rt.Out)
	return cmd
}

func newCacheClearCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "clear",
		Description: "Drop every cached club and event list",
		Flags:       flag.NewFlagSet("clear", flag.ContinueOnError),
	}
	prefix := cmd.Flags.String("prefix", "", "Redis key prefix used by the servers")
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, err := rt.OpenRedis(ctx)
		if err != nil {
			return err
		}
		if client == nil {
			return errNoSharedCache
		}
		defer client.Close()

		settings := rt.Config.Cache.Settings()
		settings.Enabled = true
		c := cache.New(cache.NewRedisStore(client, *prefix), settings, rt.Logger, nil)
		if err := c.Clear(ctx); err != nil {
			return err
		}
		rt.printf("Cache cleared\n")
		return nil
	}
	return cmd
}
