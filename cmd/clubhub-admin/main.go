package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/clubhub/pkg/cli"
	"github.com/platinummonkey/clubhub/pkg/config"
	"github.com/platinummonkey/clubhub/pkg/observability"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults to $"+config.EnvConfigFile+")")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLevel(*logLevel), observability.FormatText, os.Stderr)

	// Create root command
	rootCmd := cli.NewRootCommand(cli.NewRuntime(cfg, logger))

	// Execute command
	if err := rootCmd.Execute(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
