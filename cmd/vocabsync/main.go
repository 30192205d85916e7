package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hanzihelper/vocabsync/pkg/cedict"
	"github.com/hanzihelper/vocabsync/pkg/config"
	"github.com/hanzihelper/vocabsync/pkg/db"
	"github.com/hanzihelper/vocabsync/pkg/merge"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbFlag := flag.String("db", "", "Path to SQLite database (overrides DB_PATH)")
	dictFlag := flag.String("dict", "", "Path to a local CC-CEDICT file; skips the download step")
	downloadOnly := flag.Bool("download-only", false, "Fetch and cache the dictionary, then exit")
	lookupFlag := flag.String("lookup", "", "Print the stored entries for a word and exit")
	scheduleFlag := flag.Bool("schedule", false, "Keep running and re-import on the CRON_SCHEDULE expression")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load error", zap.Error(err))
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer conn.Close()

	if err := db.InitDB(conn); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("path", cfg.DBPath))

	if *lookupFlag != "" {
		entries, err := db.GetBySimplified(conn, *lookupFlag)
		if err != nil {
			logger.Fatal("lookup failed", zap.Error(err))
		}
		if len(entries) == 0 {
			fmt.Printf("no entries for %s\n", *lookupFlag)
			return
		}
		for _, e := range entries {
			traditional := ""
			if e.Traditional != nil {
				traditional = *e.Traditional
			}
			fmt.Printf("%s\t%s\t%s\thsk=%d\t%s\n", e.Chinese, traditional, e.Pinyin, e.HSKLevel, e.English)
		}
		return
	}

	if *downloadOnly {
		if err := cedict.EnsureDictionary(ctx, cfg.CedictCache, cfg.CedictURL); err != nil {
			logger.Fatal("dictionary download failed", zap.Error(err))
		}
		logger.Info("dictionary cached", zap.String("path", cfg.CedictCache))
		return
	}

	if *scheduleFlag {
		c := cron.New()
		if _, err := c.AddFunc(cfg.CronSchedule, func() {
			if err := runImport(ctx, conn, cfg, *dictFlag, logger); err != nil {
				logger.Error("scheduled import failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("invalid cron schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
		}
		// Run once up front; subsequent runs are idempotent re-syncs.
		if err := runImport(ctx, conn, cfg, *dictFlag, logger); err != nil {
			logger.Error("initial import failed", zap.Error(err))
		}
		logger.Info("scheduler started", zap.String("schedule", cfg.CronSchedule))
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return
	}

	if err := runImport(ctx, conn, cfg, *dictFlag, logger); err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
}

// runImport ensures a dictionary file is available, then merges it into the
// vocabulary store and prints the run report.
func runImport(ctx context.Context, conn *sql.DB, cfg *config.Config, dictPath string, logger *zap.Logger) error {
	path := dictPath
	if path == "" {
		path = cfg.CedictCache
		if err := cedict.EnsureDictionary(ctx, path, cfg.CedictURL); err != nil {
			return fmt.Errorf("ensure dictionary: %w", err)
		}
	}

	src, err := cedict.OpenDictionary(path)
	if err != nil {
		return fmt.Errorf("open dictionary: %w", err)
	}
	defer src.Close()

	importer := merge.NewImporter(conn, logger)
	importer.BatchSize = cfg.BatchSize

	report, err := importer.Run(ctx, src)
	if err != nil {
		return err
	}

	logger.Info("import complete",
		zap.Int("updated", report.Updated),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("total", report.Total))
	fmt.Println(report.Summary())
	return nil
}
