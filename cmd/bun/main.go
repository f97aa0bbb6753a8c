package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	matchmigrations "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories/migrations"
	matchjwt "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/jwt"
	matchqueue "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/queue"
	"github.com/Black-And-White-Club/quickdraw/config"
	"github.com/Black-And-White-Club/quickdraw/internal/db/bundb"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "bun",
		Usage: "quickdraw database and operator tooling",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file"},
		},
		Commands: []*cli.Command{
			newDBCommand(),
			newAdminTokenCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// withMigrators opens the database for the duration of action.
func withMigrators(action func(c *cli.Context, cfg *config.Config, migrators map[string]*migrate.Migrator) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		db, err := bundb.Open(c.Context, cfg.Postgres.DSN, bundb.PoolConfig{MaxOpenConns: 2})
		if err != nil {
			return err
		}
		defer db.Close()
		return action(c, cfg, newMigrators(db))
	}
}

func newMigrators(db *bun.DB) map[string]*migrate.Migrator {
	return map[string]*migrate.Migrator{
		"match": migrate.NewMigrator(db, matchmigrations.Migrations),
	}
}

func lookupMigrator(migrators map[string]*migrate.Migrator, moduleName string) (*migrate.Migrator, error) {
	migrator, ok := migrators[moduleName]
	if !ok {
		return nil, fmt.Errorf("invalid module name: %s", moduleName)
	}
	return migrator, nil
}

func newDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: withMigrators(func(c *cli.Context, _ *config.Config, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						fmt.Printf("Initializing migrations for module: %s\n", moduleName)
						if err := migrator.Init(c.Context); err != nil {
							return fmt.Errorf("init %s: %w", moduleName, err)
						}
					}
					return nil
				}),
			},
			{
				Name:  "migrate",
				Usage: "migrate database, including the job queue tables",
				Action: withMigrators(func(c *cli.Context, cfg *config.Config, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						if err := runMigrations(c.Context, moduleName, migrator); err != nil {
							return err
						}
					}
					if !cfg.Queue.Enabled {
						return nil
					}
					applied, err := matchqueue.Migrate(c.Context, cfg.Postgres.DSN)
					if err != nil {
						return err
					}
					fmt.Printf("Applied %d job queue migrations\n", applied)
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: withMigrators(func(c *cli.Context, _ *config.Config, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						if err := migrator.Lock(c.Context); err != nil {
							return err
						}
						group, err := migrator.Rollback(c.Context)
						unlockErr := migrator.Unlock(c.Context)
						if err != nil {
							return errors.Join(err, unlockErr)
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", moduleName)
						} else {
							fmt.Printf("Rolled back module: %s to %s\n", moduleName, group)
						}
						if unlockErr != nil {
							return unlockErr
						}
					}
					return nil
				}),
			},
			{
				Name:      "create_go",
				Usage:     "create Go migration",
				ArgsUsage: "<module> <name...>",
				Action: withMigrators(func(c *cli.Context, _ *config.Config, migrators map[string]*migrate.Migrator) error {
					migrator, err := lookupMigrator(migrators, c.Args().First())
					if err != nil {
						return err
					}
					name := strings.Join(c.Args().Tail(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					return nil
				}),
			},
			{
				Name:      "create_sql",
				Usage:     "create up and down SQL migrations",
				ArgsUsage: "<module> <name...>",
				Action: withMigrators(func(c *cli.Context, _ *config.Config, migrators map[string]*migrate.Migrator) error {
					migrator, err := lookupMigrator(migrators, c.Args().First())
					if err != nil {
						return err
					}
					name := strings.Join(c.Args().Tail(), "_")
					files, err := migrator.CreateSQLMigrations(c.Context, name)
					if err != nil {
						return err
					}
					for _, mf := range files {
						fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					}
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: withMigrators(func(c *cli.Context, _ *config.Config, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						ms, err := migrator.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", moduleName)
						fmt.Printf("  %s\n", ms)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
					}
					return nil
				}),
			},
		},
	}
}

func runMigrations(ctx context.Context, moduleName string, migrator *migrate.Migrator) error {
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", moduleName, err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return err
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", moduleName, err)
	}
	if group.IsZero() {
		fmt.Printf("No new migrations to run for module: %s\n", moduleName)
	} else {
		fmt.Printf("Migrated module: %s to %s\n", moduleName, group)
	}
	return nil
}

func newAdminTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin-token",
		Usage: "issue a bearer token for the admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Required: true, Usage: "operator identity recorded in the token"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime, defaults to auth.token_ttl"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			ttl := c.Duration("ttl")
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := matchjwt.NewProvider(cfg.Auth.JWTSecret).GenerateToken(c.String("subject"), matchjwt.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
