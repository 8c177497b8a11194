package commands

import (
	"digimon-scraper/lib/util/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuilds the dataset from the cache of a previous scrape without network access.",
	Run: func(cmd *cobra.Command, args []string) {
		scraper, err := newScraper(cfg)
		if err != nil {
			serviceutil.Fatal("failed to create scraper", err)
		}
		opts, err := cfg.ScrapeOptions()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}

		ds, err := scraper.Rebuild(cmd.Context(), opts)
		if err != nil {
			serviceutil.Fatal("failed to rebuild", err)
		}
		writeDataset(ds)
		slog.Info("rebuild done", "digimons", len(ds.Digimons))
	},
}
