package commands

import (
	"context"
	"digimon-scraper/internal/components/chrono"
	"digimon-scraper/internal/components/telemetry"
	"digimon-scraper/internal/dataset"
	"digimon-scraper/internal/digimon"
	libtelemetry "digimon-scraper/lib/telemetry"
	"digimon-scraper/lib/util/serviceutil"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var scrapeSchedule string

func init() {
	scrapeCmd.Flags().StringVar(&scrapeSchedule, "schedule", "", "A cron spec like \"@weekly\", keeps running and scrapes on that schedule.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--ignore-cache] [--cache-only] [--polite] [--redownload-lists] [--schedule <spec>]",
	Short: "Scrapes every stage listing and creature page and writes the dataset.",
	Run: func(cmd *cobra.Command, args []string) {
		if scrapeSchedule == "" {
			err := scrape(cmd.Context())
			if err != nil {
				serviceutil.Fatal("failed to scrape", err)
			}
			return
		}

		cronner := chrono.NewStandardCron(telemetry.SlogAPI{Logger: slog.Default()})
		err := cronner.Cron(scrapeSchedule, func() {
			err := scrape(cmd.Context())
			if err != nil {
				slog.Error("scheduled scrape failed", "err", err.Error())
			}
		})
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}
		slog.Info("waiting for scheduled scrapes", "schedule", scrapeSchedule)
		<-cmd.Context().Done()
		cronner.Stop()
	},
}

func scrape(ctx context.Context) error {
	scraper, err := newScraper(cfg)
	if err != nil {
		return err
	}
	opts, err := cfg.ScrapeOptions()
	if err != nil {
		return err
	}

	perfCtx, stopPerf := context.WithCancel(ctx)
	defer stopPerf()
	libtelemetry.InstrumentPerfStats(perfCtx, 15*time.Second)

	s := progressSpinner()
	opts.Progress = func(done, total int) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" scraped %d/%d pages", done, total)
		s.Unlock()
	}

	t1 := time.Now()
	s.Start()
	ds, err := scraper.Run(ctx, opts)
	s.Stop()
	if err != nil {
		return err
	}
	err = dataset.Write(cfg.OutDir, cfg.OutName, ds)
	if err != nil {
		return err
	}

	slog.Info(
		"scraping done",
		"digimons", len(ds.Digimons),
		"dir", cfg.OutDir,
		"seconds", time.Since(t1).Seconds(),
	)
	return nil
}

func progressSpinner() *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " reading listings"
	return s
}

func writeDataset(ds digimon.Dataset) {
	err := dataset.Write(cfg.OutDir, cfg.OutName, ds)
	if err != nil {
		serviceutil.Fatal("failed to write dataset", err)
	}
	slog.Info("wrote dataset", "dir", cfg.OutDir, "name", cfg.OutName)
}
