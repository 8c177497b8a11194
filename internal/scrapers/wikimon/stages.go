package wikimon

import (
	"digimon-scraper/internal/digimon"
)

const DefaultBaseUrl = "https://wikimon.net"

// Listings are the category pages enumerating each stage. Categories are
// paginated, later pages are listed with their pagefrom= parameter.
type Listings map[digimon.Stage][]string

func DefaultListings() Listings {
	return Listings{
		digimon.STAGE_BABY_I: {
			"https://wikimon.net/Category:Baby_I_Level",
		},
		digimon.STAGE_BABY_II: {
			"https://wikimon.net/Category:Baby_II_Level",
		},
		digimon.STAGE_CHILD: {
			"https://wikimon.net/Category:Child_Level",
			"https://wikimon.net/index.php?title=Category:Child_Level&pagefrom=Toy+Agumon#mw-pages",
		},
		digimon.STAGE_ADULT: {
			"https://wikimon.net/index.php?title=Category:Adult_Level",
			"https://wikimon.net/index.php?title=Category:Adult_Level&pagefrom=Mad+Leomon%3A+Armed+Mode#mw-pages",
		},
		digimon.STAGE_PERFECT: {
			"https://wikimon.net/Category:Perfect_Level",
			"https://wikimon.net/index.php?title=Category:Perfect_Level&pagefrom=Mephismon+%28X-Antibody%29#mw-pages",
		},
		digimon.STAGE_ULTIMATE: {
			"https://wikimon.net/Category:Ultimate_Level",
			"https://wikimon.net/index.php?title=Category:Ultimate_Level&pagefrom=Jokermon#mw-pages",
			"https://wikimon.net/index.php?title=Category:Ultimate_Level&pagefrom=VR-SaintGalgo#mw-pages",
		},
	}
}

// stageEntries removes the entry named like the stage itself, which links to
// the stage's article rather than a creature, and duplicate ids.
func stageEntries(stage digimon.Stage, stubs []digimon.Stub) []digimon.Stub {
	out := []digimon.Stub{}
	seen := map[string]struct{}{}
	for _, stub := range stubs {
		if stub.Name == stage.String() {
			continue
		}
		if _, ok := seen[stub.Id]; ok {
			continue
		}
		seen[stub.Id] = struct{}{}
		out = append(out, stub)
	}
	return out
}
