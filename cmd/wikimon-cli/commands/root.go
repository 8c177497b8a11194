package commands

import (
	"context"
	"digimon-scraper/lib/telemetry"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

var (
	cfg       Config
	logCloser io.Closer
	otel      telemetry.Telemetry
	profiler  interface{ Stop() }
)

var flags struct {
	config          string
	ignoreCache     bool
	cacheOnly       bool
	polite          bool
	redownloadLists bool
	retries         int
	concurrency     int
	out             string
	profile         string
}

var rootCmd = &cobra.Command{
	Use:          "wikimon-cli",
	Short:        "wikimon-cli scrapes the wikimon.net creature pages into a dataset for the web ui.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(flags.config)
		loaded, err := LoadConfig(path)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		cfg = applyFlags(cmd, loaded)

		logCloser, err = telemetry.InitSlog(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		otel, err = telemetry.Setup(cmd.Context(), "wikimon-cli", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}

		mode, err := profileMode(flags.profile)
		if err != nil {
			return err
		}
		if mode != nil {
			profiler = profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
		err := otel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err.Error())
		}
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&flags.config, "config", "", "The config file to read, defaults to $WIKIMON_CONFIG or wikimon.json5.")
	pflags.BoolVar(&flags.ignoreCache, "ignore-cache", false, "Request every page again, ignoring cached pages and results.")
	pflags.BoolVar(&flags.cacheOnly, "cache-only", false, "Never touch the network, only use cached pages.")
	pflags.BoolVar(&flags.polite, "polite", false, "Wait long randomized delays after each request and before each retry.")
	pflags.BoolVar(&flags.redownloadLists, "redownload-lists", false, "Revalidate cached listing pages.")
	pflags.IntVar(&flags.retries, "retries", 0, "The number of attempts per request.")
	pflags.IntVar(&flags.concurrency, "concurrency", 0, "The number of detail pages fetched at once.")
	pflags.StringVar(&flags.out, "out", "", "The directory the dataset is written to.")
	pflags.StringVar(&flags.profile, "profile", "", "Write a cpu or mem profile to the working directory.")
}

func profileMode(name string) (func(*profile.Profile), error) {
	switch name {
	case "":
		return nil, nil
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	default:
		return nil, fmt.Errorf("unknown profile %q, expected cpu or mem", name)
	}
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(cmd *cobra.Command, c Config) Config {
	changed := func(name string) bool {
		return cmd.Flags().Changed(name)
	}
	if changed("ignore-cache") {
		c.Fetch.IgnoreCache = flags.ignoreCache
	}
	if changed("cache-only") {
		c.Fetch.CacheOnly = flags.cacheOnly
	}
	if changed("polite") {
		c.Fetch.Polite = flags.polite
	}
	if changed("redownload-lists") {
		c.Fetch.RedownloadLists = flags.redownloadLists
	}
	if changed("retries") {
		c.Fetch.RetryCount = flags.retries
	}
	if changed("concurrency") {
		c.Concurrency = flags.concurrency
	}
	if changed("out") {
		c.OutDir = flags.out
	}
	return c
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
