package wikimon

import (
	"context"
	"digimon-scraper/internal/cache"
	"digimon-scraper/internal/components/assert"
	"digimon-scraper/internal/components/chrono"
	"digimon-scraper/internal/components/telemetry"
	"digimon-scraper/internal/dataset"
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/politehttp"
	"digimon-scraper/internal/scheduler"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"
)

const (
	report_scraper_listing  = "scraper.listing"
	report_scraper_creature = "scraper.creature"
	report_scraper_artwork  = "scraper.artwork"
	report_scraper_result   = "scraper.result"
	report_scraper_scraped  = "scraper.scraped"
	report_scraper_failed   = "scraper.failed"
	report_scraper_listed   = "scraper.listed"
)

// BodyFetcher is the part of politehttp.Fetcher the scraper uses.
type BodyFetcher interface {
	Get(ctx context.Context, namespace cache.Namespace, rawUrl string, opts politehttp.FetchOptions) ([]byte, error)
}

// ArtworkFetcher stores the image at rawUrl as the png called name.
type ArtworkFetcher interface {
	Fetch(ctx context.Context, rawUrl, name string, opts politehttp.FetchOptions) (string, error)
}

type Options struct {
	Listings Listings
	// Fetch is used for every request, Revalidate is only ever set for
	// listing pages through RedownloadLists.
	Fetch           politehttp.FetchOptions
	RedownloadLists bool
	Scheduler       scheduler.Options
	// a random pause in [StagePauseMin, StagePauseMax] is waited between
	// the listings of two stages
	StagePauseMin time.Duration
	StagePauseMax time.Duration
	// Progress is called after every settled detail page.
	Progress func(done, total int)
}

func DefaultOptions() Options {
	return Options{
		Listings:      DefaultListings(),
		Fetch:         politehttp.FetchOptions{RetryCount: 5},
		Scheduler:     scheduler.DefaultOptions(),
		StagePauseMin: 100 * time.Millisecond,
		StagePauseMax: 600 * time.Millisecond,
	}
}

type Scraper struct {
	base      *url.URL
	bodies    BodyFetcher
	results   *cache.ResultStore
	extractor PageExtractor
	artwork   ArtworkFetcher
	time      chrono.API
	tel       telemetry.API
}

func NewScraper(
	base *url.URL,
	bodies BodyFetcher,
	results *cache.ResultStore,
	extractor PageExtractor,
	artwork ArtworkFetcher,
	time chrono.API,
	tel telemetry.API,
) Scraper {
	assert.NotNil(base)
	assert.NotNil(bodies)
	assert.NotNil(results)
	assert.NotNil(artwork)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Scraper{
		base:      base,
		bodies:    bodies,
		results:   results,
		extractor: extractor,
		artwork:   artwork,
		time:      time,
		tel:       telemetry.NewScopedAPI("wikimon", tel),
	}
}

// Run scrapes every listing and the detail page of every listed creature and
// assembles the dataset. Pages that fail are reported and left out.
func (s Scraper) Run(ctx context.Context, opts Options) (digimon.Dataset, error) {
	ctx, span := tracer.Start(ctx, "scraper:run")
	defer span.End()

	listings, err := s.listings(ctx, opts)
	if err != nil {
		return digimon.Dataset{}, err
	}

	stubs := []digimon.Stub{}
	seen := map[string]struct{}{}
	for _, stage := range digimon.Stages() {
		for _, stub := range listings[stage] {
			if _, ok := seen[stub.Id]; ok {
				continue
			}
			seen[stub.Id] = struct{}{}
			stubs = append(stubs, stub)
		}
	}

	var done atomic.Int64
	tasks := make([]scheduler.Task[*digimon.Creature], len(stubs))
	for i, stub := range stubs {
		tasks[i] = func(ctx context.Context) (*digimon.Creature, error) {
			defer func() {
				n := done.Add(1)
				if opts.Progress != nil {
					opts.Progress(int(n), len(stubs))
				}
			}()
			creature, err := s.creature(ctx, stub, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", stub.Href, err)
			}
			return creature, nil
		}
	}

	schedulerOpts := opts.Scheduler
	if schedulerOpts.Time == nil {
		schedulerOpts.Time = s.time
	}
	results := scheduler.RunAll(ctx, tasks, schedulerOpts)

	failed := scheduler.Errors(results)
	for _, err := range failed {
		s.tel.ReportWarning(report_scraper_failed, err)
	}
	s.tel.ReportCount(report_scraper_failed, int64(len(failed)))
	if err := ctx.Err(); err != nil {
		return digimon.Dataset{}, err
	}

	records := scheduler.Values(results)
	s.tel.ReportCount(report_scraper_scraped, int64(len(records)))
	return dataset.Assemble(listings, records), nil
}

// Rebuild assembles the dataset from what earlier runs stored without any
// network access.
func (s Scraper) Rebuild(ctx context.Context, opts Options) (digimon.Dataset, error) {
	opts.Fetch.CacheOnly = true
	opts.Fetch.IgnoreCache = false
	opts.RedownloadLists = false
	opts.StagePauseMin = 0
	opts.StagePauseMax = 0
	opts.Scheduler.JitterMin = 0
	opts.Scheduler.JitterMax = 0
	return s.Run(ctx, opts)
}

func (s Scraper) listings(ctx context.Context, opts Options) (map[digimon.Stage][]digimon.Stub, error) {
	listings := map[digimon.Stage][]digimon.Stub{}
	for i, stage := range digimon.Stages() {
		if i > 0 && opts.StagePauseMax > 0 {
			err := s.time.Sleep(ctx, chrono.Between(opts.StagePauseMin, opts.StagePauseMax))
			if err != nil {
				return nil, err
			}
		}

		stubs := []digimon.Stub{}
		for _, listingUrl := range opts.Listings[stage] {
			entries, err := s.listing(ctx, listingUrl, opts)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, politehttp.ErrDisallowedURL) {
				return nil, fmt.Errorf("listing %s: %w", listingUrl, err)
			}
			if err != nil {
				s.tel.ReportWarning(report_scraper_listing, err, "url", listingUrl)
				continue
			}
			stubs = append(stubs, entries...)
		}
		listings[stage] = stageEntries(stage, stubs)
		s.tel.ReportDebug(report_scraper_listed, "stage", stage.String(), "count", len(listings[stage]))
	}
	return listings, nil
}

func (s Scraper) listing(ctx context.Context, listingUrl string, opts Options) ([]digimon.Stub, error) {
	if opts.Fetch.CacheOnly {
		stubs, err := s.results.LoadListing(ctx, listingUrl)
		if err == nil {
			return stubs, nil
		}
		if !errors.Is(err, cache.ErrResultNotFound) {
			s.tel.ReportWarning(report_scraper_result, err, "url", listingUrl)
		}
	}

	fetchOpts := opts.Fetch
	fetchOpts.Revalidate = opts.RedownloadLists
	body, err := s.bodies.Get(ctx, cache.NAMESPACE_LISTING, listingUrl, fetchOpts)
	if err != nil {
		return nil, err
	}
	stubs, err := ExtractList(ctx, body, s.base)
	if err != nil {
		return nil, err
	}

	err = s.results.SaveListing(ctx, listingUrl, stubs)
	if err != nil {
		s.tel.ReportWarning(report_scraper_result, err, "url", listingUrl)
	}
	return stubs, nil
}

func (s Scraper) creature(ctx context.Context, stub digimon.Stub, opts Options) (*digimon.Creature, error) {
	if !opts.Fetch.IgnoreCache {
		creature, err := s.results.LoadCreature(ctx, stub.Href)
		if err == nil {
			return creature, nil
		}
		if !errors.Is(err, cache.ErrResultNotFound) {
			s.tel.ReportWarning(report_scraper_result, err, "url", stub.Href)
		}
	}

	fetchOpts := opts.Fetch
	fetchOpts.Revalidate = false
	body, err := s.bodies.Get(ctx, cache.NAMESPACE_DETAIL, stub.Href, fetchOpts)
	if err != nil {
		return nil, err
	}

	creature, err := s.extractor.Extract(ctx, body, stub.Href)
	if err != nil {
		return nil, err
	}
	if creature == nil {
		s.tel.ReportWarning(report_scraper_creature, fmt.Errorf("no article at %s", stub.Href))
		return nil, nil
	}

	if creature.ImgOrigin != nil {
		_, err := s.artwork.Fetch(ctx, *creature.ImgOrigin, creature.Id, fetchOpts)
		if err != nil {
			s.tel.ReportWarning(report_scraper_artwork, err, "url", *creature.ImgOrigin)
		}
	}
	for _, category := range creature.Categories {
		if category.IconUrl == "" {
			continue
		}
		_, err := s.artwork.Fetch(ctx, category.IconUrl, category.Id, fetchOpts)
		if err != nil {
			s.tel.ReportWarning(report_scraper_artwork, err, "url", category.IconUrl)
		}
	}

	if creature.Id != "" {
		err = s.results.SaveCreature(ctx, stub.Href, creature)
		if err != nil {
			s.tel.ReportWarning(report_scraper_result, err, "url", stub.Href)
		}
	}
	return creature, nil
}
