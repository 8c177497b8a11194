package digimon

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Stage is one of the six evolution tiers, ordered from youngest to oldest.
type Stage int

const (
	STAGE_UNKNOWN Stage = iota
	STAGE_BABY_I
	STAGE_BABY_II
	STAGE_CHILD
	STAGE_ADULT
	STAGE_PERFECT
	STAGE_ULTIMATE
)

var stageNames = map[Stage]string{
	STAGE_BABY_I:   "Baby I",
	STAGE_BABY_II:  "Baby II",
	STAGE_CHILD:    "Child",
	STAGE_ADULT:    "Adult",
	STAGE_PERFECT:  "Perfect",
	STAGE_ULTIMATE: "Ultimate",
}

var stageKeys = map[Stage]string{
	STAGE_BABY_I:   "baby1",
	STAGE_BABY_II:  "baby2",
	STAGE_CHILD:    "child",
	STAGE_ADULT:    "adult",
	STAGE_PERFECT:  "perfect",
	STAGE_ULTIMATE: "ultimate",
}

// Stages returns every stage in evolution order.
func Stages() []Stage {
	return []Stage{
		STAGE_BABY_I,
		STAGE_BABY_II,
		STAGE_CHILD,
		STAGE_ADULT,
		STAGE_PERFECT,
		STAGE_ULTIMATE,
	}
}

func (s Stage) Valid() bool {
	return s >= STAGE_BABY_I && s <= STAGE_ULTIMATE
}

func (s Stage) String() string {
	name, ok := stageNames[s]
	if !ok {
		return "Unknown"
	}
	return name
}

// Key is the name of the stage's listing in the dataset file.
func (s Stage) Key() string {
	return stageKeys[s]
}

// Prev returns the stage immediately before s.
func (s Stage) Prev() (Stage, bool) {
	if !s.Valid() || s == STAGE_BABY_I {
		return STAGE_UNKNOWN, false
	}
	return s - 1, true
}

// Next returns the stage immediately after s.
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || s == STAGE_ULTIMATE {
		return STAGE_UNKNOWN, false
	}
	return s + 1, true
}

// longer names first so that "Baby II" is not read as "Baby I"
var stageRegex = regexp.MustCompile(`^\s*(Baby II|Baby I|Child|Adult|Perfect|Ultimate)\s*$`)

// ParseStage reads a level as it is written on the wiki, values like
// "Armor" or "Hybrid" are not stages.
func ParseStage(text string) (Stage, bool) {
	groups := stageRegex.FindStringSubmatch(text)
	if len(groups) < 2 {
		return STAGE_UNKNOWN, false
	}
	for stage, name := range stageNames {
		if name == groups[1] {
			return stage, true
		}
	}
	return STAGE_UNKNOWN, false
}

func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = STAGE_UNKNOWN
		return nil
	}
	var text string
	err := json.Unmarshal(data, &text)
	if err != nil {
		return err
	}
	stage, ok := ParseStage(text)
	if !ok {
		return fmt.Errorf("unknown stage %q", text)
	}
	*s = stage
	return nil
}
