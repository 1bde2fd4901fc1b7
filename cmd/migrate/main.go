package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/config"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up        apply all pending migrations
  down      roll back the most recent migration
  status    print migration status
  version   migrate to -version (YYYYMMDDHHMMSS)
  create    scaffold a new SQL migration named -name
  validate  check the migrations directory parses

flags:
`

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version (version)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	if err := run(command, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func run(command, dir, name, version string) error {
	ctx := context.Background()

	// create and validate only touch the filesystem
	switch command {
	case "create":
		if name == "" {
			return fmt.Errorf("missing -name")
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": command,
		"dir": dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql database: %w", err)
	}

	switch command {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dir, command)
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dir, version)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
