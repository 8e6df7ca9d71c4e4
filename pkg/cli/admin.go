package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/users"
)

// EnvAdminPassword supplies the create-admin password when the flag is omitted
const EnvAdminPassword = "CLUBHUB_ADMIN_PASSWORD"

func newCreateAdminCommand(rt *Runtime) *Command {
	cmd := &Command{
		Name:        "create-admin",
		Description: "Create a global administrator, or promote and reset an existing account",
		Flags:       flag.NewFlagSet("create-admin", flag.ContinueOnError),
	}
	name := cmd.Flags.String("name", "Administrator", "Display name")
	email := cmd.Flags.String("email", "", "Email address (required)")
	password := cmd.Flags.String("password", "", "Password; defaults to $"+EnvAdminPassword)
	cmd.Flags.SetOutput(rt.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return fmt.Errorf("--email is required")
		}
		if *password == "" {
			*password = os.Getenv(EnvAdminPassword)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return rt.withDB(ctx, func(db *sql.DB) error {
			var invalidator cache.Invalidator = (*cache.Cache)(nil)
			svc := users.NewPostgresService(db, auth.NewPasswordHasher(rt.Config.Auth.BcryptCost), invalidator, rt.Logger)

			user, err := svc.EnsureAdmin(ctx, users.CreateUserRequest{
				Name:     *name,
				Email:    *email,
				Password: *password,
			})
			if err != nil {
				return err
			}
			rt.printf("Administrator %s ready (id %s)\n", user.Email, user.ID)
			return nil
		})
	}
	return cmd
}
