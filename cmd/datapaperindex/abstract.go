package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"DataPaperIndex/internal/app"
)

var journalHint string

type abstractOutput struct {
	Status   string `json:"status"`
	Abstract string `json:"abstract,omitempty"`
	Journal  string `json:"journal,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

var abstractCmd = &cobra.Command{
	Use:   "abstract <doi-or-url>",
	Short: "Fetch one paper's abstract from its landing page",
	Long: `Resolve a DOI or article URL, identify the journal and extract the abstract
with the journal's selectors.

Examples:
  datapaperindex abstract 10.5194/essd-17-1-2025
  datapaperindex abstract https://www.nature.com/articles/s41597-025-00001-1 --journal "Scientific Data"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application, _ *slog.Logger) error {
			res := a.FetchAbstract(cmd.Context(), args[0], journalHint)
			out := abstractOutput{
				Status:   res.Status.String(),
				Abstract: res.Abstract,
				Journal:  res.Journal,
				URL:      res.URL,
			}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			return printJSON(out)
		})
	},
}

func init() {
	abstractCmd.Flags().StringVar(&journalHint, "journal", "", "journal name hint for selector choice")
}
