package politehttp

import (
	"context"
	"digimon-scraper/internal/cache"
	"digimon-scraper/internal/components/assert"
	"digimon-scraper/internal/components/telemetry"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_fetcher_get = "fetcher.get"
)

var tracer = otel.Tracer("digimon-scraper.internal.politehttp")

// ErrNotCached is returned in cache only mode for urls that were never fetched.
var ErrNotCached = errors.New("not cached")

// PageClient is the part of Client used by Fetcher.
//
// note: fault injection point
type PageClient interface {
	Fetch(ctx context.Context, rawUrl string, headers map[string]string, opts Options) (*Response, error)
}

// FetchOptions are the cache and politeness toggles of a single Get.
type FetchOptions struct {
	// IgnoreCache always requests the url unconditionally.
	IgnoreCache bool
	// CacheOnly never touches the network.
	CacheOnly bool
	// Revalidate requests cached urls again with a conditional request.
	Revalidate bool
	Polite     bool
	RetryCount int
}

func (o FetchOptions) client() Options {
	return Options{Polite: o.Polite, RetryCount: o.RetryCount}
}

// Fetcher serves bodies from a ContentCache and falls back to a PageClient
// for missing or stale entries.
type Fetcher struct {
	base   *url.URL
	client PageClient
	cache  *cache.ContentCache
	tel    telemetry.API
}

func NewFetcher(base *url.URL, client PageClient, contentCache *cache.ContentCache, tel telemetry.API) *Fetcher {
	assert.NotNil(base)
	assert.NotNil(client)
	assert.NotNil(contentCache)
	assert.NotNil(tel)

	return &Fetcher{
		base:   base,
		client: client,
		cache:  contentCache,
		tel:    telemetry.NewScopedAPI("politehttp", tel),
	}
}

// Get returns the body of rawUrl.
//
// It fails with ErrDisallowedURL for urls that must never be requested,
// ErrNotFound for missing pages and ErrNotCached in cache only mode. When the
// origin keeps failing, a previously cached body is returned instead.
func (f *Fetcher) Get(ctx context.Context, namespace cache.Namespace, rawUrl string, opts FetchOptions) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetcher:get")
	defer span.End()
	span.SetAttributes(
		attribute.String("custom.url", rawUrl),
		attribute.String("custom.namespace", string(namespace)),
	)

	err := CheckAllowed(f.base, rawUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "disallowed url")
		f.tel.ReportBroken(report_fetcher_get, err)
		return nil, err
	}

	key, err := cache.KeyFor(namespace, rawUrl)
	if err != nil {
		return nil, err
	}
	entry, err := f.cache.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cache")
		return nil, fmt.Errorf("read cache: %w", err)
	}

	if opts.CacheOnly {
		if entry == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, rawUrl)
		}
		return entry.Body, nil
	}
	if entry != nil && !opts.IgnoreCache && !opts.Revalidate {
		span.AddEvent("cache hit")
		return entry.Body, nil
	}

	conditional := entry != nil && !opts.IgnoreCache && !entry.Validators.Empty()
	body, err := f.fetch(ctx, key, rawUrl, entry, conditional, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
	}
	return body, err
}

func (f *Fetcher) fetch(
	ctx context.Context,
	key, rawUrl string,
	entry *cache.Entry,
	conditional bool,
	opts FetchOptions,
) ([]byte, error) {
	headers := map[string]string{}
	if conditional {
		if entry.Validators.ETag != "" {
			headers["If-None-Match"] = entry.Validators.ETag
		}
		if entry.Validators.LastModified != "" {
			headers["If-Modified-Since"] = entry.Validators.LastModified
		}
	}

	res, err := f.client.Fetch(ctx, rawUrl, headers, opts.client())
	if errors.Is(err, ErrNotFound) {
		// the page is gone, a cached copy must not resurface in cache only runs
		invalidateErr := f.cache.Invalidate(ctx, key)
		if invalidateErr != nil {
			f.tel.ReportBroken(report_fetcher_get, fmt.Errorf("invalidate cache: %w", invalidateErr), rawUrl)
		}
		return nil, err
	}
	if err != nil {
		if ctx.Err() != nil || entry == nil {
			return nil, err
		}
		f.tel.ReportWarning(report_fetcher_get, "serving cached copy after fetch failure", rawUrl, err)
		return entry.Body, nil
	}

	validators := validatorsFrom(res.Header)

	if res.Status == http.StatusNotModified {
		if !conditional {
			return nil, fmt.Errorf("%w: 304 for an unconditional request: %s", ErrUnexpectedStatus, rawUrl)
		}
		if validatorsChanged(entry.Validators, validators) {
			f.tel.ReportWarning(report_fetcher_get, "validators changed despite 304, refetching", rawUrl)
			// stale entry: not served on failure, only replaced by a successful Put
			return f.fetch(ctx, key, rawUrl, nil, false, opts)
		}

		err = f.cache.UpdateValidators(ctx, key, rawUrl, mergeValidators(entry.Validators, validators))
		if err != nil {
			f.tel.ReportBroken(report_fetcher_get, fmt.Errorf("update validators: %w", err), rawUrl)
			return nil, err
		}
		return entry.Body, nil
	}

	err = f.cache.Put(ctx, key, rawUrl, res.Body, validators)
	if err != nil {
		f.tel.ReportBroken(report_fetcher_get, fmt.Errorf("write cache: %w", err), rawUrl)
		return nil, err
	}
	return res.Body, nil
}

func validatorsFrom(header http.Header) cache.Validators {
	return cache.Validators{
		ETag:         header.Get("ETag"),
		LastModified: header.Get("Last-Modified"),
	}
}

// validatorsChanged reports whether a 304 response names a different version
// of the resource than the one cached.
func validatorsChanged(stored, received cache.Validators) bool {
	if stored.ETag != "" && received.ETag != "" {
		return stored.ETag != received.ETag
	}
	if stored.ETag == "" && stored.LastModified != "" && received.LastModified != "" {
		return stored.LastModified != received.LastModified
	}
	return false
}

func mergeValidators(stored, received cache.Validators) cache.Validators {
	out := stored
	if received.ETag != "" {
		out.ETag = received.ETag
	}
	if received.LastModified != "" {
		out.LastModified = received.LastModified
	}
	return out
}
