package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// runMigrate 解析全局选项后把子命令交给 migration.CLI：
//
//	moneta migrate [--config path] [--env-file path] [--db-driver name] <command> [arg]
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	envFile := fs.String("env-file", ".env", "Path to .env file (ignored when missing)")
	driver := fs.String("db-driver", "", "Override database driver (postgres, mysql, sqlite)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	migrator, err := migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := migration.NewCLI(migrator).Run(ctx, fs.Args())
	stop()

	if err := migrator.Close(); err != nil {
		logger.Warn("failed to close migrator", zap.Error(err))
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", runErr)
		os.Exit(1)
	}
}
