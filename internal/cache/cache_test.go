package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	testCases := []struct {
		a         string
		b         string
		namespace Namespace
		same      bool
	}{
		{a: "https://wikimon.net/Agumon", b: "https://wikimon.net/Agumon", same: true},
		{a: "https://WIKIMON.net/Agumon", b: "https://wikimon.net/Agumon", same: true},
		{a: "https://wikimon.net:443/Agumon", b: "https://wikimon.net/Agumon", same: true},
		{a: "https://wikimon.net/Agumon#Evolves_To", b: "https://wikimon.net/Agumon", same: true},
		{a: "https://wikimon.net/index.php?pagefrom=X&title=Y", b: "https://wikimon.net/index.php?title=Y&pagefrom=X", same: true},
		{a: "https://wikimon.net/Agumon", b: "https://wikimon.net/Gabumon", same: false},
	}
	for _, test := range testCases {
		a, err := KeyFor(NAMESPACE_DETAIL, test.a)
		require.Nil(t, err)
		b, err := KeyFor(NAMESPACE_DETAIL, test.b)
		require.Nil(t, err)
		require.Equal(t, test.same, a == b, "%s vs %s", test.a, test.b)
	}

	listing, err := KeyFor(NAMESPACE_LISTING, "https://wikimon.net/Agumon")
	require.Nil(t, err)
	detail, err := KeyFor(NAMESPACE_DETAIL, "https://wikimon.net/Agumon")
	require.Nil(t, err)
	image, err := KeyFor(NAMESPACE_IMAGE, "https://wikimon.net/Agumon")
	require.Nil(t, err)
	require.NotEqual(t, listing, detail)
	require.NotEqual(t, detail, image)
	require.Regexp(t, `^l_[0-9a-f]{64}$`, listing)
}

func TestContentCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "lazily", "created")
	c := NewContentCache(dir)

	key, err := KeyFor(NAMESPACE_DETAIL, "https://wikimon.net/Agumon")
	require.Nil(t, err)

	entry, err := c.Get(ctx, key)
	require.Nil(t, err)
	require.Nil(t, entry)

	hasValidators, err := c.HasValidators(ctx, key)
	require.Nil(t, err)
	require.False(t, hasValidators)

	body := []byte("<html>agumon</html>")
	validators := Validators{ETag: `"v1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"}
	require.Nil(t, c.Put(ctx, key, "https://wikimon.net/Agumon", body, validators))

	entry, err = c.Get(ctx, key)
	require.Nil(t, err)
	require.Equal(t, body, entry.Body)
	require.Equal(t, validators, entry.Validators)
	require.Equal(t, "https://wikimon.net/Agumon", entry.Url)

	hasValidators, err = c.HasValidators(ctx, key)
	require.Nil(t, err)
	require.True(t, hasValidators)

	require.Nil(t, c.UpdateValidators(ctx, key, "https://wikimon.net/Agumon", Validators{ETag: `"v2"`}))
	entry, err = c.Get(ctx, key)
	require.Nil(t, err)
	require.Equal(t, body, entry.Body)
	require.Equal(t, `"v2"`, entry.Validators.ETag)

	require.Nil(t, c.Invalidate(ctx, key))
	entry, err = c.Get(ctx, key)
	require.Nil(t, err)
	require.Nil(t, entry)
	require.Nil(t, c.Invalidate(ctx, key))

	err = c.UpdateValidators(ctx, key, "https://wikimon.net/Agumon", Validators{ETag: `"v3"`})
	require.True(t, os.IsNotExist(err))
}

func TestContentCacheBodyWithoutMeta(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewContentCache(dir)

	require.Nil(t, os.WriteFile(filepath.Join(dir, "d_legacy.body"), []byte("old"), 0644))
	entry, err := c.Get(ctx, "d_legacy")
	require.Nil(t, err)
	require.Equal(t, []byte("old"), entry.Body)
	require.True(t, entry.Validators.Empty())
}

func TestContentCacheConcurrentPut(t *testing.T) {
	ctx := context.Background()
	c := NewContentCache(t.TempDir())

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Put(ctx, "d_same", "u", []byte(fmt.Sprintf("body %02d", i)), Validators{ETag: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.Nil(t, err)
	}

	entry, err := c.Get(ctx, "d_same")
	require.Nil(t, err)
	require.Len(t, entry.Body, len("body 00"))

	leftovers, err := filepath.Glob(filepath.Join(c.Dir(), "*.tmp"))
	require.Nil(t, err)
	require.Empty(t, leftovers)
	require.Empty(t, c.locks.locks)
}
