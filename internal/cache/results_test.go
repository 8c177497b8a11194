package cache

import (
	"context"
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/ident"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestResultStore(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(t.TempDir())

	_, err := store.LoadCreature(ctx, "https://wikimon.net/Agumon")
	require.ErrorIs(t, err, ErrResultNotFound)
	_, err = store.LoadListing(ctx, "https://wikimon.net/Category:Child_Level")
	require.ErrorIs(t, err, ErrResultNotFound)

	weight := 3
	img := "img/Agumon.png"
	creature := &digimon.Creature{
		Href:       "https://wikimon.net/Agumon",
		Id:         "Agumon",
		Name:       "Agumon",
		Names:      map[string]string{"dub": "Agumon"},
		Img:        &img,
		Level:      digimon.STAGE_CHILD,
		Levels:     []string{"Child"},
		MinWeights: []int{3},
		MinWeight:  &weight,
		EvolvesTo:  []digimon.Edge{{Id: "Greymon", Name: "Greymon", Canon: true}},
	}
	require.Nil(t, store.SaveCreature(ctx, creature.Href, creature))

	loaded, err := store.LoadCreature(ctx, "https://wikimon.net/Agumon#top")
	require.Nil(t, err)
	require.Empty(t, cmp.Diff(creature, loaded))

	stubs := []digimon.Stub{{Id: "Agumon", Name: "Agumon", Href: "https://wikimon.net/Agumon"}}
	require.Nil(t, store.SaveListing(ctx, "https://wikimon.net/Category:Child_Level", stubs))
	loadedStubs, err := store.LoadListing(ctx, "https://wikimon.net/Category:Child_Level")
	require.Nil(t, err)
	require.Equal(t, stubs, loadedStubs)

	// creatures and listings never share a file even for the same url
	_, err = store.LoadListing(ctx, "https://wikimon.net/Agumon")
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultStoreMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewResultStore(dir)

	creature := &digimon.Creature{Href: "https://wikimon.net/Gabumon", Id: "Gabumon", Name: "Gabumon"}
	require.Nil(t, store.SaveCreature(ctx, creature.Href, creature))

	entries, err := os.ReadDir(dir)
	require.Nil(t, err)
	require.Len(t, entries, 1)
	require.Nil(t, os.RemoveAll(filepath.Join(dir, entries[0].Name())))

	// served from memory once the file is gone
	loaded, err := store.LoadCreature(ctx, creature.Href)
	require.Nil(t, err)
	require.Equal(t, "Gabumon", loaded.Id)

	_, err = NewResultStore(dir).LoadCreature(ctx, creature.Href)
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultStoreIgnoresOtherIdentVersions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	href := "https://wikimon.net/Agumon"

	key, err := KeyFor(namespace_creature, href)
	require.Nil(t, err)
	older := filepath.Join(dir, fmt.Sprintf("ident-v%d", ident.Version-1))
	require.Nil(t, os.MkdirAll(older, 0755))
	require.Nil(t, os.WriteFile(filepath.Join(older, key+".json"), []byte(`{"id":"agumon"}`), 0644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte(`{"id":"agumon"}`), 0644))

	store := NewResultStore(dir)
	_, err = store.LoadCreature(ctx, href)
	require.ErrorIs(t, err, ErrResultNotFound)

	require.Nil(t, store.SaveCreature(ctx, href, &digimon.Creature{Href: href, Id: "Agumon"}))
	_, err = os.Stat(filepath.Join(dir, fmt.Sprintf("ident-v%d", ident.Version), key+".json"))
	require.Nil(t, err)
}
