package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/config"
	"github.com/lalithlochan/sentinel/internal/db"
	"github.com/lalithlochan/sentinel/internal/observ"
)

const usage = `usage: migrator [up | down -steps N | status]

Manages the client_state schema of the console's Postgres storage backend,
using the DB_* settings the console reads.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrator:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "up"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("migrator", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintln(fs.Output(), usage) }
	steps := fs.Int("steps", 1, "migrations to roll back with down")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrations, err := db.Migrations()
	if err != nil {
		return err
	}

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	migrator := db.NewMigrator(database, migrations, logger)

	switch command {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logger.Info("migrations complete", zap.Int("applied", n), zap.Int("known", len(migrations)))
	case "down":
		if *steps < 1 {
			return fmt.Errorf("-steps must be at least 1")
		}
		n, err := migrator.Down(ctx, *steps)
		if err != nil {
			return err
		}
		logger.Info("rollback complete", zap.Int("rolled_back", n))
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			applied := "pending"
			if s.AppliedAt != nil {
				applied = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%03d  %-30s  %s\n", s.Version, s.Name, applied)
		}
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
