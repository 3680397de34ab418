package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"DataPaperIndex/internal/app"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, _ *slog.Logger) error {
			return a.Schedule(cmd.Context())
		})
	},
}
