package commands

import (
	"digimon-scraper/internal/artwork"
	"digimon-scraper/internal/cache"
	"digimon-scraper/internal/components/chrono"
	"digimon-scraper/internal/components/telemetry"
	"digimon-scraper/internal/politehttp"
	"digimon-scraper/internal/scrapers/wikimon"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	browser "github.com/EDDYCJY/fake-useragent"
)

// newScraper wires the scraper's components from the config.
func newScraper(c Config) (wikimon.Scraper, error) {
	base, err := url.Parse(c.BaseUrl)
	if err != nil {
		return wikimon.Scraper{}, fmt.Errorf("base url: %w", err)
	}

	policy, err := c.Policy()
	if err != nil {
		return wikimon.Scraper{}, err
	}
	if c.Fetch.RandomUserAgent {
		policy.UserAgent = browser.Chrome()
	}

	tel := telemetry.SlogAPI{Logger: slog.Default()}
	clock := chrono.NewStandardImpl()

	client, err := politehttp.NewClient(c.BaseUrl, policy, clock, tel)
	if err != nil {
		return wikimon.Scraper{}, err
	}
	fetcher := politehttp.NewFetcher(base, client, cache.NewContentCache(c.CacheDir), tel)

	return wikimon.NewScraper(
		base,
		fetcher,
		cache.NewResultStore(filepath.Join(c.CacheDir, "results")),
		wikimon.NewPageExtractor(base, c.ImageDir, wikimon.DefaultImageStrategies(), tel),
		artwork.NewFetcher(fetcher, c.ImageDir, tel),
		clock,
		tel,
	), nil
}
