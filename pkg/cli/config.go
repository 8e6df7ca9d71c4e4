package cli

import (
	"flag"
	"fmt"
	"net/url"

	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

func newConfigCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "config",
		Description: "Validate and print the effective configuration",
		Flags:       flag.NewFlagSet("config", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		cfg := *rt.Config
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}

		if cfg.Auth.JWTSecret != "" {
			cfg.Auth.JWTSecret = redacted
		}
		if cfg.Redis.Password != "" {
			cfg.Redis.Password = redacted
		}
		if cfg.Storage.S3SecretKey != "" {
			cfg.Storage.S3SecretKey = redacted
		}
		cfg.Database.URL = redactURL(cfg.Database.URL)
		cfg.Redis.URL = redactURL(cfg.Redis.URL)

		out, err := yaml.Marshal(&cfg)
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		rt.printf("%s", out)
		return nil
	}
	return cmd
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
