// Package dataset joins listings and records into the file consumed by the
// web ui.
package dataset

import (
	"digimon-scraper/internal/digimon"
	"digimon-scraper/lib/osutil"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Assemble builds the dataset from the stage listings and extracted records.
//
// Records without an id are dropped and duplicates keep their first
// occurrence. Evolution edges are kept only when they point at a known record
// of the adjacent stage: evolvesFrom the previous stage, evolvesTo the next.
// Listings are reduced to entries whose record has exactly the listing's
// stage, All is their ordered union.
func Assemble(listings map[digimon.Stage][]digimon.Stub, records []*digimon.Creature) digimon.Dataset {
	byId := map[string]*digimon.Creature{}
	creatures := []*digimon.Creature{}
	for _, record := range records {
		if record == nil || record.Id == "" {
			continue
		}
		if _, ok := byId[record.Id]; ok {
			continue
		}
		copied := normalize(*record)
		byId[record.Id] = copied
		creatures = append(creatures, copied)
	}

	for _, creature := range creatures {
		creature.EvolvesFrom = adjacentEdges(creature.EvolvesFrom, creature.Level.Prev, byId)
		creature.EvolvesTo = adjacentEdges(creature.EvolvesTo, creature.Level.Next, byId)
	}

	ds := digimon.Dataset{Digimons: creatures}
	seen := map[string]struct{}{}
	for _, stage := range digimon.Stages() {
		filtered := []digimon.Stub{}
		inStage := map[string]struct{}{}
		for _, stub := range listings[stage] {
			creature, ok := byId[stub.Id]
			if !ok || creature.Level != stage {
				continue
			}
			if _, dup := inStage[stub.Id]; dup {
				continue
			}
			inStage[stub.Id] = struct{}{}
			filtered = append(filtered, stub)
			if _, ok := seen[stub.Id]; !ok {
				seen[stub.Id] = struct{}{}
				ds.Lists.All = append(ds.Lists.All, stub)
			}
		}
		*ds.Lists.Stage(stage) = filtered
	}
	if ds.Lists.All == nil {
		ds.Lists.All = []digimon.Stub{}
	}
	return ds
}

func adjacentEdges(edges []digimon.Edge, adjacent func() (digimon.Stage, bool), byId map[string]*digimon.Creature) []digimon.Edge {
	kept := []digimon.Edge{}
	stage, ok := adjacent()
	if !ok {
		return kept
	}
	seen := map[string]struct{}{}
	for _, edge := range edges {
		target, known := byId[edge.Id]
		if !known || target.Level != stage {
			continue
		}
		if _, dup := seen[edge.Id]; dup {
			continue
		}
		seen[edge.Id] = struct{}{}
		kept = append(kept, edge)
	}
	return kept
}

// normalize returns a copy of c whose collections are never null in json.
func normalize(c digimon.Creature) *digimon.Creature {
	if c.Names == nil {
		c.Names = map[string]string{}
	}
	if c.Levels == nil {
		c.Levels = []string{}
	}
	if c.Classes == nil {
		c.Classes = []string{}
	}
	if c.Types == nil {
		c.Types = []string{}
	}
	if c.Attributes == nil {
		c.Attributes = []string{}
	}
	if c.Fields == nil {
		c.Fields = []string{}
	}
	if c.MinWeights == nil {
		c.MinWeights = []int{}
	}
	if c.Categories == nil {
		c.Categories = []digimon.Category{}
	}
	return &c
}

// Write stores ds as <dir>/<name>.json and an indented <dir>/<name>.pretty.json.
func Write(dir, name string, ds digimon.Dataset) error {
	compact, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	pretty, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	err = osutil.WriteFileAtomic(filepath.Join(dir, name+".json"), compact)
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomic(filepath.Join(dir, name+".pretty.json"), pretty)
}

// Read loads a dataset written by Write.
func Read(path string) (digimon.Dataset, error) {
	var ds digimon.Dataset
	content, err := os.ReadFile(path)
	if err != nil {
		return ds, err
	}
	err = json.Unmarshal(content, &ds)
	if err != nil {
		return ds, fmt.Errorf("decode %s: %w", path, err)
	}
	return ds, nil
}
