// Command presskitctl runs operator tasks against the PressKit database:
// migrations, account tier and activation changes, and the analytics worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/presskit/presskit/internal/analytics"
	"github.com/presskit/presskit/internal/cache"
	"github.com/presskit/presskit/internal/metrics"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	if err := newApp().Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "presskitctl",
		Usage: "PressKit operator tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database-url", Sources: cli.EnvVars("DATABASE_URL"), Usage: "PostgreSQL connection URL"},
			&cli.StringFlag{Name: "log-level", Value: "info", Sources: cli.EnvVars("LOG_LEVEL")},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			userCommand(),
			workerCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database schema migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withRepo(func(ctx context.Context, _ *cli.Command, repo *repository.Repository) error {
					if err := repo.Migrate(ctx); err != nil {
						return err
					}
					fmt.Println("migrations applied")
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "Show applied and pending migrations",
				Action: withRepo(func(ctx context.Context, _ *cli.Command, repo *repository.Repository) error {
					return repo.MigrationStatus(ctx)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withRepo(func(ctx context.Context, _ *cli.Command, repo *repository.Repository) error {
					if err := repo.MigrateDown(ctx); err != nil {
						return err
					}
					fmt.Println("rolled back one migration")
					return nil
				}),
			},
		},
	}
}

func userCommand() *cli.Command {
	emailFlag := &cli.StringFlag{Name: "email", Required: true, Usage: "account email"}

	return &cli.Command{
		Name:  "user",
		Usage: "Administer user accounts",
		Commands: []*cli.Command{
			{
				Name:  "set-tier",
				Usage: "Change a user's subscription tier",
				Flags: []cli.Flag{
					emailFlag,
					&cli.StringFlag{Name: "tier", Required: true, Usage: "free, premium, pro or enterprise"},
				},
				Action: withRepo(func(ctx context.Context, c *cli.Command, repo *repository.Repository) error {
					tier := c.String("tier")
					if !model.IsValidTier(tier) {
						return fmt.Errorf("invalid tier %q", tier)
					}
					return updateUser(ctx, repo, c.String("email"), func(u *model.User) {
						u.Tier = tier
					})
				}),
			},
			{
				Name:  "activate",
				Usage: "Re-enable a deactivated account",
				Flags: []cli.Flag{emailFlag},
				Action: withRepo(func(ctx context.Context, c *cli.Command, repo *repository.Repository) error {
					return updateUser(ctx, repo, c.String("email"), func(u *model.User) {
						u.IsActive = true
					})
				}),
			},
			{
				Name:  "deactivate",
				Usage: "Disable an account; its tokens stop authenticating",
				Flags: []cli.Flag{emailFlag},
				Action: withRepo(func(ctx context.Context, c *cli.Command, repo *repository.Repository) error {
					return updateUser(ctx, repo, c.String("email"), func(u *model.User) {
						u.IsActive = false
					})
				}),
			},
		},
	}
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the analytics stream worker until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis-url", Sources: cli.EnvVars("REDIS_URL"), Required: true},
			&cli.IntFlag{Name: "batch-size", Value: analytics.DefaultBatchSize},
			&cli.DurationFlag{Name: "shutdown-timeout", Value: 30 * time.Second},
		},
		Action: withRepo(func(ctx context.Context, c *cli.Command, repo *repository.Repository) error {
			logger := newLogger(c)

			cacheClient, err := cache.New(ctx, c.String("redis-url"), cache.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer cacheClient.Close()

			worker := analytics.NewWorker(cacheClient.Client(), repo, logger, analytics.NewConsumerID(), metrics.NewNoop())
			worker.SetBatchSize(int(c.Int("batch-size")))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- worker.Run(ctx) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutdown signal received, draining worker")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
			defer cancel()
			return worker.Shutdown(shutdownCtx)
		}),
	}
}

type repoAction func(ctx context.Context, c *cli.Command, repo *repository.Repository) error

// withRepo opens the database for the duration of one command.
func withRepo(fn repoAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		dsn := c.String("database-url")
		if dsn == "" {
			return errors.New("DATABASE_URL or --database-url is required")
		}
		repo, err := repository.New(ctx, dsn, repository.ConnectOptions{Attempts: 1, Logger: newLogger(c)})
		if err != nil {
			return err
		}
		defer repo.Close()
		return fn(ctx, c, repo)
	}
}

func updateUser(ctx context.Context, repo *repository.Repository, email string, mutate func(*model.User)) error {
	user, err := repo.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}
	mutate(user)
	user.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user %s: %w", email, err)
	}
	fmt.Printf("updated %s: tier=%s active=%t\n", user.Email, user.Tier, user.IsActive)
	return nil
}

func newLogger(c *cli.Command) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
