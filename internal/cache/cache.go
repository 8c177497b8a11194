// Package cache stores fetched bodies on disk together with the validators
// (etag / last-modified) needed to revalidate them with a conditional request.
package cache

import (
	"context"
	"crypto/sha256"
	"digimon-scraper/lib/osutil"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("digimon-scraper.internal.cache")

// Namespace separates entries of different kinds that may share a url.
type Namespace string

const (
	NAMESPACE_LISTING Namespace = "l"
	NAMESPACE_DETAIL  Namespace = "d"
	NAMESPACE_IMAGE   Namespace = "i"
)

type Validators struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

func (v Validators) Empty() bool {
	return v.ETag == "" && v.LastModified == ""
}

type Entry struct {
	Key        string
	Url        string
	Body       []byte
	Validators Validators
	StoredAt   time.Time
}

type meta struct {
	Url string `json:"url"`
	Validators
	StoredAt time.Time `json:"storedAt"`
}

// NormalizeUrl returns the form of rawUrl that is hashed into a key,
// equivalent spellings of the same url share a cache entry.
func NormalizeUrl(rawUrl string) (string, error) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return "", err
	}
	// the fragment never reaches the server
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return purell.NormalizeURL(
		parsed,
		purell.FlagsSafe|purell.FlagSortQuery|purell.FlagRemoveDuplicateSlashes,
	), nil
}

// KeyFor returns the cache key of rawUrl inside namespace.
func KeyFor(namespace Namespace, rawUrl string) (string, error) {
	normalized, err := NormalizeUrl(rawUrl)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s_%s", namespace, hex.EncodeToString(sum[:])), nil
}

// ContentCache is a directory of `<key>.body` files, each with a
// `<key>.meta.json` sidecar holding its validators.
type ContentCache struct {
	dir   string
	locks keyedMutex
	now   func() time.Time
}

func NewContentCache(dir string) *ContentCache {
	return &ContentCache{dir: dir, now: time.Now}
}

func (c *ContentCache) Dir() string {
	return c.dir
}

func (c *ContentCache) bodyPath(key string) string {
	return filepath.Join(c.dir, key+".body")
}

func (c *ContentCache) metaPath(key string) string {
	return filepath.Join(c.dir, key+".meta.json")
}

// Get returns the entry stored under key, or nil if there is none.
func (c *ContentCache) Get(ctx context.Context, key string) (*Entry, error) {
	_, span := tracer.Start(ctx, "cache:get")
	defer span.End()
	span.SetAttributes(attribute.String("custom.cache_key", key))

	unlock := c.locks.lock(key)
	defer unlock()

	body, err := os.ReadFile(c.bodyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached body")
		return nil, err
	}

	entry := &Entry{Key: key, Body: body}

	serialized, err := os.ReadFile(c.metaPath(key))
	if errors.Is(err, os.ErrNotExist) {
		// bodies written before validators existed are still usable
		return entry, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cache metadata")
		return nil, err
	}
	var m meta
	err = json.Unmarshal(serialized, &m)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cache metadata")
		return entry, nil
	}
	entry.Url = m.Url
	entry.Validators = m.Validators
	entry.StoredAt = m.StoredAt

	span.SetAttributes(attribute.Int("custom.contentlength", len(body)))
	return entry, nil
}

// Put stores body and its validators under key, replacing any previous entry.
func (c *ContentCache) Put(ctx context.Context, key, rawUrl string, body []byte, validators Validators) error {
	_, span := tracer.Start(ctx, "cache:put")
	defer span.End()
	span.SetAttributes(attribute.String("custom.cache_key", key))

	unlock := c.locks.lock(key)
	defer unlock()

	err := osutil.WriteFileAtomic(c.bodyPath(key), body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cached body")
		return err
	}
	return c.writeMeta(key, meta{Url: rawUrl, Validators: validators, StoredAt: c.now()})
}

// UpdateValidators replaces the validators of an existing entry without
// touching its body.
func (c *ContentCache) UpdateValidators(ctx context.Context, key, rawUrl string, validators Validators) error {
	_, span := tracer.Start(ctx, "cache:update-validators")
	defer span.End()

	unlock := c.locks.lock(key)
	defer unlock()

	_, err := os.Stat(c.bodyPath(key))
	if err != nil {
		return err
	}
	return c.writeMeta(key, meta{Url: rawUrl, Validators: validators, StoredAt: c.now()})
}

func (c *ContentCache) writeMeta(key string, m meta) error {
	serialized, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomic(c.metaPath(key), serialized)
}

// HasValidators reports whether key is cached with an etag or last-modified.
func (c *ContentCache) HasValidators(ctx context.Context, key string) (bool, error) {
	entry, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return entry != nil && !entry.Validators.Empty(), nil
}

// Invalidate removes the entry stored under key, it is not an error if
// there is none.
func (c *ContentCache) Invalidate(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "cache:invalidate")
	defer span.End()

	unlock := c.locks.lock(key)
	defer unlock()

	var errs []error
	for _, path := range []string{c.bodyPath(key), c.metaPath(key)} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// keyedMutex hands out one mutex per key, mutexes are dropped again once
// nobody holds or waits for them.
type keyedMutex struct {
	mutex sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mutex.Lock()
	if k.locks == nil {
		k.locks = map[string]*refMutex{}
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mutex.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mutex.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mutex.Unlock()
	}
}
