package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"DataPaperIndex/internal/app"
)

var (
	fullUpdate bool
	exportOut  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full harvest, enrich and export pipeline once",
	Long: `Run one pipeline pass: back up the previous snapshot, harvest every
configured feed, enrich new and incomplete papers, then export the snapshot.

The run is skipped when nothing changed, unless --full-update is set.

Examples:
  datapaperindex run
  datapaperindex run --full-update --config config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, _ *slog.Logger) error {
			report, err := a.Run(cmd.Context(), fullUpdate)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Fetch journal feeds and store new raw papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, logger *slog.Logger) error {
			added, err := a.Harvest(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("harvest finished", "added", added)
			return nil
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Derive missing fields for unprocessed and incomplete papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, logger *slog.Logger) error {
			enriched, err := a.Enrich(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("enrichment finished", "enriched", enriched)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the processed catalog as a JSON snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, logger *slog.Logger) error {
			exported, err := a.Export(cmd.Context(), exportOut)
			if err != nil {
				return err
			}
			logger.Info("export finished", "records", exported)
			return nil
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&fullUpdate, "full-update", false, "never skip the run, even when nothing changed")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "snapshot path (default: export.snapshotPath)")
}
