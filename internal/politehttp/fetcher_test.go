package politehttp

import (
	"context"
	"digimon-scraper/internal/cache"
	"digimon-scraper/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// origin is a fake wiki page that honors conditional requests.
type origin struct {
	mutex    sync.Mutex
	etag     string
	body     string
	status   int
	requests []http.Header
	// notModifiedEtag, when set, is sent on 304 responses instead of etag
	notModifiedEtag string
	// unconditionalStatus, when set, answers requests without If-None-Match
	unconditionalStatus int
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.requests = append(o.requests, r.Header.Clone())

	if o.status != 0 {
		w.WriteHeader(o.status)
		return
	}
	if o.unconditionalStatus != 0 && r.Header.Get("If-None-Match") == "" {
		w.WriteHeader(o.unconditionalStatus)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == o.etag {
		if o.notModifiedEtag != "" {
			w.Header().Set("ETag", o.notModifiedEtag)
		} else {
			w.Header().Set("ETag", o.etag)
		}
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", o.etag)
	w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
	w.Write([]byte(o.body))
}

func (o *origin) Requests() []http.Header {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return append([]http.Header(nil), o.requests...)
}

func newTestFetcher(t *testing.T, o *origin) (*Fetcher, *cache.ContentCache, string, *telemetry.MemoryAPI) {
	server := httptest.NewServer(o)
	t.Cleanup(server.Close)

	client, _, tel := newTestClient(t, server.URL)
	base, err := url.Parse(server.URL)
	require.Nil(t, err)

	contentCache := cache.NewContentCache(t.TempDir())
	return NewFetcher(base, client, contentCache, tel), contentCache, server.URL, tel
}

func TestFetcherServesFromCache(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "agumon v1"}
	fetcher, _, baseUrl, _ := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"

	body, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{RetryCount: 3})
	require.Nil(t, err)
	require.Equal(t, "agumon v1", string(body))

	body, err = fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{RetryCount: 3})
	require.Nil(t, err)
	require.Equal(t, "agumon v1", string(body))
	require.Len(t, o.Requests(), 1)

	// a different namespace is a different entry
	_, err = fetcher.Get(ctx, cache.NAMESPACE_LISTING, pageUrl, FetchOptions{RetryCount: 3})
	require.Nil(t, err)
	require.Len(t, o.Requests(), 2)
}

func TestFetcherRevalidates(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "listing v1"}
	fetcher, contentCache, baseUrl, _ := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Category:Child_Level"
	opts := FetchOptions{Revalidate: true, RetryCount: 3}

	_, err := fetcher.Get(ctx, cache.NAMESPACE_LISTING, pageUrl, opts)
	require.Nil(t, err)

	o.mutex.Lock()
	o.body = "listing v1 but the origin would send this if asked unconditionally"
	o.mutex.Unlock()

	body, err := fetcher.Get(ctx, cache.NAMESPACE_LISTING, pageUrl, opts)
	require.Nil(t, err)
	require.Equal(t, "listing v1", string(body))

	requests := o.Requests()
	require.Len(t, requests, 2)
	require.Equal(t, "", requests[0].Get("If-None-Match"))
	require.Equal(t, `"v1"`, requests[1].Get("If-None-Match"))
	require.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", requests[1].Get("If-Modified-Since"))

	key, err := cache.KeyFor(cache.NAMESPACE_LISTING, pageUrl)
	require.Nil(t, err)
	hasValidators, err := contentCache.HasValidators(ctx, key)
	require.Nil(t, err)
	require.True(t, hasValidators)
}

func TestFetcherRefetchesWhenValidatorsChange(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "v1 body"}
	fetcher, contentCache, baseUrl, tel := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"
	opts := FetchOptions{Revalidate: true, RetryCount: 3}

	_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, opts)
	require.Nil(t, err)

	o.mutex.Lock()
	o.notModifiedEtag = `"v2"`
	o.body = "v2 body"
	o.mutex.Unlock()

	body, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, opts)
	require.Nil(t, err)
	require.Equal(t, "v2 body", string(body))

	requests := o.Requests()
	require.Len(t, requests, 3)
	require.Equal(t, `"v1"`, requests[1].Get("If-None-Match"))
	require.Equal(t, "", requests[2].Get("If-None-Match"))
	require.Len(t, tel.Find("warning", report_fetcher_get), 1)

	key, err := cache.KeyFor(cache.NAMESPACE_DETAIL, pageUrl)
	require.Nil(t, err)
	entry, err := contentCache.Get(ctx, key)
	require.Nil(t, err)
	require.Equal(t, "v2 body", string(entry.Body))
}

func TestFetcherKeepsEntryWhenRefetchFails(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "agumon v1"}
	fetcher, contentCache, baseUrl, _ := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"
	opts := FetchOptions{Revalidate: true, RetryCount: 2}

	_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, opts)
	require.Nil(t, err)

	o.mutex.Lock()
	o.notModifiedEtag = `"v2"`
	o.unconditionalStatus = http.StatusServiceUnavailable
	o.mutex.Unlock()

	body, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, opts)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Nil(t, body)

	key, err := cache.KeyFor(cache.NAMESPACE_DETAIL, pageUrl)
	require.Nil(t, err)
	entry, err := contentCache.Get(ctx, key)
	require.Nil(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "agumon v1", string(entry.Body))

	body, err = fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{CacheOnly: true})
	require.Nil(t, err)
	require.Equal(t, "agumon v1", string(body))
}

func TestFetcherCacheOnly(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "agumon"}
	fetcher, _, baseUrl, _ := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"

	_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{CacheOnly: true})
	require.ErrorIs(t, err, ErrNotCached)
	require.Empty(t, o.Requests())

	_, err = fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{RetryCount: 1})
	require.Nil(t, err)

	body, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{CacheOnly: true, IgnoreCache: true})
	require.Nil(t, err)
	require.Equal(t, "agumon", string(body))
	require.Len(t, o.Requests(), 1)
}

func TestFetcherIgnoreCache(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "agumon"}
	fetcher, _, baseUrl, _ := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"

	for i := 0; i < 2; i++ {
		_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{IgnoreCache: true, RetryCount: 1})
		require.Nil(t, err)
	}
	requests := o.Requests()
	require.Len(t, requests, 2)
	require.Equal(t, "", requests[1].Get("If-None-Match"))
}

func TestFetcherFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "agumon"}
	fetcher, _, baseUrl, tel := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"

	_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{RetryCount: 1})
	require.Nil(t, err)

	o.mutex.Lock()
	o.status = http.StatusBadGateway
	o.mutex.Unlock()

	body, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{Revalidate: true, RetryCount: 2})
	require.Nil(t, err)
	require.Equal(t, "agumon", string(body))
	require.Len(t, tel.Find("warning", report_fetcher_get), 1)

	_, err = fetcher.Get(ctx, cache.NAMESPACE_DETAIL, baseUrl+"/Gabumon", FetchOptions{RetryCount: 2})
	require.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestFetcherNotFound(t *testing.T) {
	ctx := context.Background()
	o := &origin{status: http.StatusNotFound}
	fetcher, _, baseUrl, _ := newTestFetcher(t, o)

	body, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, baseUrl+"/Missingmon", FetchOptions{RetryCount: 3})
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, body)
	require.Len(t, o.Requests(), 1)
}

func TestFetcherNotFoundDropsCachedEntry(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "agumon"}
	fetcher, contentCache, baseUrl, _ := newTestFetcher(t, o)
	pageUrl := baseUrl + "/Agumon"

	_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{RetryCount: 1})
	require.Nil(t, err)

	o.mutex.Lock()
	o.status = http.StatusNotFound
	o.mutex.Unlock()

	_, err = fetcher.Get(ctx, cache.NAMESPACE_DETAIL, pageUrl, FetchOptions{Revalidate: true, RetryCount: 1})
	require.ErrorIs(t, err, ErrNotFound)

	key, err := cache.KeyFor(cache.NAMESPACE_DETAIL, pageUrl)
	require.Nil(t, err)
	entry, err := contentCache.Get(ctx, key)
	require.Nil(t, err)
	require.Nil(t, entry)
}

func TestFetcherDisallowed(t *testing.T) {
	ctx := context.Background()
	o := &origin{etag: `"v1"`, body: "x"}
	fetcher, _, baseUrl, tel := newTestFetcher(t, o)

	_, err := fetcher.Get(ctx, cache.NAMESPACE_DETAIL, baseUrl+"/Special:Random", FetchOptions{RetryCount: 1})
	require.ErrorIs(t, err, ErrDisallowedURL)
	_, err = fetcher.Get(ctx, cache.NAMESPACE_DETAIL, "https://example.com/Agumon", FetchOptions{CacheOnly: true})
	require.ErrorIs(t, err, ErrDisallowedURL)
	require.Empty(t, o.Requests())
	require.Len(t, tel.Find("broken", report_fetcher_get), 2)
}

func TestValidatorsChanged(t *testing.T) {
	testCases := []struct {
		stored   cache.Validators
		received cache.Validators
		changed  bool
	}{
		{stored: cache.Validators{ETag: "a"}, received: cache.Validators{ETag: "a"}, changed: false},
		{stored: cache.Validators{ETag: "a"}, received: cache.Validators{ETag: "b"}, changed: true},
		{stored: cache.Validators{ETag: "a"}, received: cache.Validators{}, changed: false},
		{stored: cache.Validators{LastModified: "x"}, received: cache.Validators{LastModified: "y"}, changed: true},
		{stored: cache.Validators{ETag: "a", LastModified: "x"}, received: cache.Validators{LastModified: "y"}, changed: false},
	}
	for _, test := range testCases {
		require.Equal(t, test.changed, validatorsChanged(test.stored, test.received), "%+v %+v", test.stored, test.received)
	}
}
