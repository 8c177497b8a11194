package cache

import (
	"context"
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/ident"
	"digimon-scraper/lib/osutil"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	namespace_creature Namespace = "r"
	namespace_listing  Namespace = "s"
)

var ErrResultNotFound = errors.New("result not found")

// stored results embed identifiers, results written by another ident.Version
// live in another directory and are never read
var resultVersionDir = fmt.Sprintf("ident-v%d", ident.Version)

// ResultStore keeps one JSON file per parsed creature and per parsed listing
// page, so a dataset can be rebuilt without touching the network. Recently
// used files are also kept in memory, scheduled scrapes read them every run.
type ResultStore struct {
	dir    string
	locks  keyedMutex
	memory *expirable.LRU[string, []byte]
}

func NewResultStore(dir string) *ResultStore {
	return &ResultStore{
		dir:    dir,
		memory: expirable.NewLRU[string, []byte](4096, nil, time.Hour),
	}
}

func (s *ResultStore) path(namespace Namespace, rawUrl string) (string, error) {
	key, err := KeyFor(namespace, rawUrl)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, resultVersionDir, key+".json"), nil
}

func (s *ResultStore) save(namespace Namespace, rawUrl string, value any) error {
	path, err := s.path(namespace, rawUrl)
	if err != nil {
		return err
	}
	serialized, err := json.Marshal(value)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(path)
	defer unlock()
	err = osutil.WriteFileAtomic(path, serialized)
	if err != nil {
		s.memory.Remove(path)
		return err
	}
	s.memory.Add(path, serialized)
	return nil
}

func (s *ResultStore) load(namespace Namespace, rawUrl string, out any) error {
	path, err := s.path(namespace, rawUrl)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(path)
	defer unlock()

	serialized, hit := s.memory.Get(path)
	if !hit {
		serialized, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return ErrResultNotFound
		}
		if err != nil {
			return err
		}
		s.memory.Add(path, serialized)
	}
	err = json.Unmarshal(serialized, out)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *ResultStore) SaveCreature(ctx context.Context, pageUrl string, creature *digimon.Creature) error {
	_, span := tracer.Start(ctx, "results:save-creature")
	defer span.End()
	return s.save(namespace_creature, pageUrl, creature)
}

// LoadCreature returns ErrResultNotFound if pageUrl was never saved.
func (s *ResultStore) LoadCreature(ctx context.Context, pageUrl string) (*digimon.Creature, error) {
	_, span := tracer.Start(ctx, "results:load-creature")
	defer span.End()

	var creature digimon.Creature
	err := s.load(namespace_creature, pageUrl, &creature)
	if err != nil {
		return nil, err
	}
	return &creature, nil
}

func (s *ResultStore) SaveListing(ctx context.Context, listingUrl string, stubs []digimon.Stub) error {
	_, span := tracer.Start(ctx, "results:save-listing")
	defer span.End()
	return s.save(namespace_listing, listingUrl, stubs)
}

// LoadListing returns ErrResultNotFound if listingUrl was never saved.
func (s *ResultStore) LoadListing(ctx context.Context, listingUrl string) ([]digimon.Stub, error) {
	_, span := tracer.Start(ctx, "results:load-listing")
	defer span.End()

	var stubs []digimon.Stub
	err := s.load(namespace_listing, listingUrl, &stubs)
	if err != nil {
		return nil, err
	}
	return stubs, nil
}
