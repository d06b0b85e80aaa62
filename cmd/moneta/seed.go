package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/capability/crm"
	"github.com/BaSui01/moneta/capability/search"
	"github.com/BaSui01/moneta/config"
	"github.com/BaSui01/moneta/usecase"
)

// =============================================================================
// 🌱 seed 命令
// =============================================================================

// runSeed 把内置样例数据推送到已配置的后端：
//
//	moneta seed [--config path] [--env-file path] [--profiles-dir dir] [--overwrite]
func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	envFile := fs.String("env-file", ".env", "Path to .env file (ignored when missing)")
	profilesDir := fs.String("profiles-dir", "", "Write sample client profiles here (default: capabilities.crm.data_dir)")
	overwrite := fs.Bool("overwrite", false, "Replace profile files that already exist")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &seeder{cfg: cfg.Capabilities, profilesDir: *profilesDir, overwrite: *overwrite, out: os.Stdout, logger: logger}
	if err := s.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}
}

// seeder 上传样例搜索文档并导出样例客户档案；未配置的目标会被跳过
type seeder struct {
	cfg         config.CapabilitiesConfig
	profilesDir string
	overwrite   bool
	out         io.Writer
	logger      *zap.Logger
}

func (s *seeder) run(ctx context.Context) error {
	if err := s.seedSearch(ctx); err != nil {
		return err
	}
	return s.seedProfiles()
}

func (s *seeder) seedSearch(ctx context.Context) error {
	if s.cfg.Search.Endpoint == "" {
		fmt.Fprintln(s.out, "Search: no endpoint configured, the embedded sample indexes are used as is.")
		return nil
	}

	indexes := usecase.SearchIndexes(s.cfg.Search)
	for _, name := range usecase.SearchCapabilities {
		docs, err := search.SampleDocuments(name)
		if err != nil {
			return err
		}
		client, err := usecase.NewAzureSearcher(s.cfg.Search, indexes[name], s.logger)
		if err != nil {
			return fmt.Errorf("search client %s: %w", name, err)
		}
		n, err := client.Upload(ctx, docs)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Search: %d document(s) uploaded to %s\n", n, indexes[name])
	}
	return nil
}

func (s *seeder) seedProfiles() error {
	dir := s.profilesDir
	if dir == "" {
		dir = s.cfg.CRM.DataDir
	}
	if dir == "" {
		fmt.Fprintln(s.out, "Profiles: no data directory configured, the embedded sample profiles are used as is.")
		return nil
	}

	written, err := crm.ExportSamples(dir, s.overwrite)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		fmt.Fprintf(s.out, "Profiles: %s already populated, nothing written.\n", dir)
		return nil
	}
	for _, name := range written {
		fmt.Fprintf(s.out, "Profiles: wrote %s\n", name)
	}
	s.logger.Info("sample profiles exported", zap.String("dir", dir), zap.Strings("files", written))
	return nil
}
