package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carebase/internal/config"
	"carebase/internal/infrastructure"
	"carebase/internal/services"
	"carebase/internal/sheet"
	"carebase/internal/store"
)

func main() {
	filePath := flag.String("file", "", "input .xlsx workbook (required)")
	sheetName := flag.String("sheet", "", "worksheet name (defaults to the first sheet)")
	dbPath := flag.String("db", "", "SQLite database path (defaults to configured storage, empty config uses in-memory)")
	familyService := flag.Bool("service", false, "treat the workbook as a family-service sheet")
	showStats := flag.Bool("stats", false, "print statistics after import")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -file <workbook.xlsx> [-sheet name] [-db path] [-service] [-stats]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	ctx := context.Background()

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open record store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	patterns, err := config.LoadPatterns(cfg.Ingest.PatternsFile)
	if err != nil {
		logger.Error("Failed to load header patterns", slog.String("error", err.Error()))
		os.Exit(1)
	}

	raw, err := sheet.OpenWorkbookSheet(*filePath, *sheetName)
	if err != nil {
		logger.Error("Failed to read workbook",
			slog.String("file", *filePath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	importer := services.NewImportService(st, logger,
		services.WithPatterns(patterns),
		services.WithHeaderDepth(cfg.Ingest.HeaderDepth),
		services.WithDataStartRow(cfg.Ingest.DataStartRow),
		services.WithProgress(func(ev services.ProgressEvent) {
			if ev.Stage == "ingesting" && ev.Total > 0 {
				logger.Debug("import progress",
					slog.Int("row", ev.Row),
					slog.Int("total", ev.Total))
			}
		}),
	)

	logger.Info("Starting workbook import",
		slog.String("file", *filePath),
		slog.Bool("family_service", *familyService))

	var summary *services.ImportSummary
	if *familyService {
		summary, err = importer.ImportFamilyServices(ctx, raw)
	} else {
		summary, err = importer.ImportPatients(ctx, raw)
	}
	if err != nil {
		logger.Error("Import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printJSON(summary)

	for _, rowErr := range summary.Errors {
		logger.Warn("row skipped", slog.Int("row", rowErr.Row), slog.String("reason", rowErr.Reason))
	}

	if *showStats {
		statsService := services.NewStatsService(st, logger)
		stats, err := statsService.Statistics(ctx, time.Now())
		if err != nil {
			logger.Error("Statistics computation failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		printJSON(stats)
	}
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Storage.DBPath == "" {
		logger.Info("Using in-memory record store")
		return store.NewMemoryStore(), nil
	}
	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return store.NewSQLiteStore(cfg.Storage.DBPath)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode output", slog.String("error", err.Error()))
	}
}
