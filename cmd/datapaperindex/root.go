package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"DataPaperIndex/internal/app"
	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "datapaperindex",
	Short: "Harvest, enrich and export data papers from journal feeds",
	Long: `DataPaperIndex follows RSS/Atom feeds of data journals, stores new papers
keyed by DOI, derives Chinese translations, interpretations, tags and a
subject with an LLM, and exports the processed catalog as a JSON snapshot.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: $DATAPAPER_CONFIG)",
	)

	rootCmd.AddCommand(runCmd, harvestCmd, enrichCmd, exportCmd, abstractCmd, scheduleCmd)
}

// withApp loads configuration, builds the application and closes it after fn.
func withApp(ctx context.Context, fn func(*app.Application, *slog.Logger) error) error {
	cfg := config.Load(cfgFile)
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("cannot start application", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close catalog", "error", err)
		}
	}()

	if err := fn(application, logger); err != nil {
		logger.Error("command failed", "error", err)
		return err
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
