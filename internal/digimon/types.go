package digimon

// Stub is one entry of a stage listing.
type Stub struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Href string `json:"href"`
}

// Edge is an evolution relation as written in a creature's "Evolves From" or
// "Evolves To" list.
type Edge struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Url  string `json:"url"`
	// Canon is set when the source lists the relation in bold.
	Canon bool   `json:"canon"`
	Note  string `json:"note"`
	Line  string `json:"line"`
}

type Category struct {
	Id    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Img   string `json:"img"`
	Title string `json:"title"`
	Href  string `json:"href"`

	// IconUrl is where the icon behind Img is downloaded from.
	IconUrl string `json:"-"`
}

// Creature is the record extracted from one detail page.
type Creature struct {
	Href         string            `json:"href"`
	Id           string            `json:"id"`
	Name         string            `json:"name"`
	Names        map[string]string `json:"names"`
	Description  string            `json:"description"`
	Img          *string           `json:"img"`
	ImgOrigin    *string           `json:"imgOrigin"`
	Levels       []string          `json:"levels"`
	Level        Stage             `json:"level"`
	Classes      []string          `json:"classes"`
	DigimonClass string            `json:"digimonClass"`
	Types        []string          `json:"types"`
	Attributes   []string          `json:"attributes"`
	Fields       []string          `json:"fields"`
	MinWeights   []int             `json:"minWeights"`
	MinWeight    *int              `json:"minWeight"`
	Categories   []Category        `json:"categories"`
	EvolvesFrom  []Edge            `json:"evolvesFrom"`
	EvolvesTo    []Edge            `json:"evolvesTo"`
}

// Lists holds one ordered listing per stage plus the union of all of them.
type Lists struct {
	Baby1    []Stub `json:"baby1"`
	Baby2    []Stub `json:"baby2"`
	Child    []Stub `json:"child"`
	Adult    []Stub `json:"adult"`
	Perfect  []Stub `json:"perfect"`
	Ultimate []Stub `json:"ultimate"`
	All      []Stub `json:"all"`
}

// Stage returns a pointer to the listing of stage, nil for an invalid stage.
func (l *Lists) Stage(stage Stage) *[]Stub {
	switch stage {
	case STAGE_BABY_I:
		return &l.Baby1
	case STAGE_BABY_II:
		return &l.Baby2
	case STAGE_CHILD:
		return &l.Child
	case STAGE_ADULT:
		return &l.Adult
	case STAGE_PERFECT:
		return &l.Perfect
	case STAGE_ULTIMATE:
		return &l.Ultimate
	}
	return nil
}

// Dataset is the file consumed by the web ui.
type Dataset struct {
	Lists    Lists       `json:"lists"`
	Digimons []*Creature `json:"digimons"`
}
