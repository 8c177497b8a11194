package commands

import (
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/politehttp"
	"digimon-scraper/internal/scheduler"
	"digimon-scraper/internal/scrapers/wikimon"
	"digimon-scraper/lib/configutil"
	"digimon-scraper/lib/telemetry"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const default_config_path = "wikimon.json5"

type FetchConfig struct {
	// durations are written like "60s" or "20m"
	PoliteRetryDelay  string  `json:"polite_retry_delay" yaml:"polite_retry_delay"`
	RetryJitterMin    string  `json:"retry_jitter_min" yaml:"retry_jitter_min"`
	RetryJitterMax    string  `json:"retry_jitter_max" yaml:"retry_jitter_max"`
	SuccessDelayMin   string  `json:"success_delay_min" yaml:"success_delay_min"`
	SuccessDelayMax   string  `json:"success_delay_max" yaml:"success_delay_max"`
	StagePauseMin     string  `json:"stage_pause_min" yaml:"stage_pause_min"`
	StagePauseMax     string  `json:"stage_pause_max" yaml:"stage_pause_max"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Timeout           string  `json:"timeout" yaml:"timeout"`
	UserAgent         string  `json:"user_agent" yaml:"user_agent"`
	// RandomUserAgent replaces UserAgent with a random browser user agent.
	RandomUserAgent bool `json:"random_user_agent" yaml:"random_user_agent"`
	RetryCount      int  `json:"retry_count" yaml:"retry_count"`
	Polite          bool `json:"polite" yaml:"polite"`
	IgnoreCache     bool `json:"ignore_cache" yaml:"ignore_cache"`
	CacheOnly       bool `json:"cache_only" yaml:"cache_only"`
	RedownloadLists bool `json:"redownload_lists" yaml:"redownload_lists"`
}

type ExportConfig struct {
	// Dialect is sqlite or postgres.
	Dialect string `json:"dialect" yaml:"dialect"`
	Dsn     string `json:"dsn" yaml:"dsn"`
}

type Config struct {
	BaseUrl     string `json:"base_url" yaml:"base_url"`
	CacheDir    string `json:"cache_dir" yaml:"cache_dir"`
	ImageDir    string `json:"image_dir" yaml:"image_dir"`
	OutDir      string `json:"out_dir" yaml:"out_dir"`
	OutName     string `json:"out_name" yaml:"out_name"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	// Listings are keyed by the stage's dataset key, "baby1" through "ultimate".
	Listings  map[string][]string `json:"listings" yaml:"listings"`
	Fetch     FetchConfig         `json:"fetch" yaml:"fetch"`
	Export    ExportConfig        `json:"export" yaml:"export"`
	Log       telemetry.LogConfig `json:"log" yaml:"log"`
	Telemetry telemetry.Config    `json:"telemetry" yaml:"telemetry"`
}

func DefaultConfig() Config {
	listings := map[string][]string{}
	for stage, urls := range wikimon.DefaultListings() {
		listings[stage.Key()] = urls
	}
	return Config{
		BaseUrl:     wikimon.DefaultBaseUrl,
		CacheDir:    "cache",
		ImageDir:    filepath.Join("public", "img"),
		OutDir:      filepath.Join("src", "assets"),
		OutName:     "digimon.db",
		Concurrency: 4,
		Listings:    listings,
		Fetch: FetchConfig{
			PoliteRetryDelay:  "60s",
			RetryJitterMin:    "3s",
			RetryJitterMax:    "7s",
			SuccessDelayMin:   "30s",
			SuccessDelayMax:   "20m",
			StagePauseMin:     "100ms",
			StagePauseMax:     "600ms",
			RequestsPerSecond: 1,
			Timeout:           "30s",
			UserAgent:         "digimon-scraper/1.0 (+https://github.com/digimon-scraper)",
			RetryCount:        5,
		},
		Export: ExportConfig{
			Dialect: "sqlite",
			Dsn:     "digimon.sqlite",
		},
		Log: telemetry.LogConfig{
			Level: "info",
		},
	}
}

// configPath is --config, then $WIKIMON_CONFIG, then wikimon.json5.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("WIKIMON_CONFIG"); env != "" {
		return env
	}
	return default_config_path
}

func LoadConfig(path string) (Config, error) {
	return configutil.ReadConfigOrDefault(path, DefaultConfig())
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// durations parses every named duration into its destination.
func durations(values map[string]string, out map[string]*time.Duration) error {
	for name, dest := range out {
		d, err := parseDuration(name, values[name])
		if err != nil {
			return err
		}
		*dest = d
	}
	return nil
}

func (c Config) Policy() (politehttp.Policy, error) {
	policy := politehttp.Policy{
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		UserAgent:         c.Fetch.UserAgent,
	}
	err := durations(
		map[string]string{
			"polite_retry_delay": c.Fetch.PoliteRetryDelay,
			"retry_jitter_min":   c.Fetch.RetryJitterMin,
			"retry_jitter_max":   c.Fetch.RetryJitterMax,
			"success_delay_min":  c.Fetch.SuccessDelayMin,
			"success_delay_max":  c.Fetch.SuccessDelayMax,
			"timeout":            c.Fetch.Timeout,
		},
		map[string]*time.Duration{
			"polite_retry_delay": &policy.PoliteRetryDelay,
			"retry_jitter_min":   &policy.RetryJitterMin,
			"retry_jitter_max":   &policy.RetryJitterMax,
			"success_delay_min":  &policy.SuccessDelayMin,
			"success_delay_max":  &policy.SuccessDelayMax,
			"timeout":            &policy.Timeout,
		},
	)
	return policy, err
}

func (c Config) ScrapeOptions() (wikimon.Options, error) {
	opts := wikimon.DefaultOptions()
	opts.Listings = wikimon.Listings{}
	for _, stage := range digimon.Stages() {
		opts.Listings[stage] = c.Listings[stage.Key()]
	}
	for key := range c.Listings {
		if !validStageKey(key) {
			return opts, fmt.Errorf("listings: unknown stage %q", key)
		}
	}

	opts.Fetch = politehttp.FetchOptions{
		IgnoreCache: c.Fetch.IgnoreCache,
		CacheOnly:   c.Fetch.CacheOnly,
		Polite:      c.Fetch.Polite,
		RetryCount:  c.Fetch.RetryCount,
	}
	opts.RedownloadLists = c.Fetch.RedownloadLists

	schedulerOpts := scheduler.DefaultOptions()
	if c.Concurrency > 0 {
		schedulerOpts.Limit = c.Concurrency
	}
	opts.Scheduler = schedulerOpts

	err := durations(
		map[string]string{
			"stage_pause_min": c.Fetch.StagePauseMin,
			"stage_pause_max": c.Fetch.StagePauseMax,
		},
		map[string]*time.Duration{
			"stage_pause_min": &opts.StagePauseMin,
			"stage_pause_max": &opts.StagePauseMax,
		},
	)
	return opts, err
}

func validStageKey(key string) bool {
	for _, stage := range digimon.Stages() {
		if stage.Key() == key {
			return true
		}
	}
	return false
}
