package wikimon

import (
	"digimon-scraper/lib/textutil"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// PageImage is an image found anywhere on a detail page.
type PageImage struct {
	Src   string
	Alt   string
	Width int
}

// label is what an image is matched by, its alt text or else its file name.
func (i PageImage) label() string {
	label := strings.TrimSpace(i.Alt)
	if label == "" {
		label = fileName(i.Src)
	}
	label = strings.TrimSuffix(label, path.Ext(label))
	return strings.ReplaceAll(label, "_", " ")
}

// fileName returns the original file name of an image url, thumbnails are
// served as /images/thumb/a/ab/Name.jpg/320px-Name.jpg.
func fileName(src string) string {
	parsed, err := url.Parse(src)
	if err != nil {
		return ""
	}
	p := parsed.Path
	if i := strings.Index(p, "/thumb/"); i >= 0 {
		p = path.Dir(p)
	}
	name, err := url.PathUnescape(path.Base(p))
	if err != nil {
		return path.Base(p)
	}
	return name
}

// ImageStrategy picks the creature's artwork out of the images of its page,
// Func returns "" when it cannot decide.
type ImageStrategy struct {
	Name string
	Func func(images []PageImage, name string) string
}

// DefaultImageStrategies are tried in order, stricter matches first.
func DefaultImageStrategies() []ImageStrategy {
	return []ImageStrategy{
		{Name: "alt-exact", Func: altExact},
		{Name: "alt-normalized", Func: altNormalized},
		{Name: "x-antibody", Func: xAntibody},
		{Name: "black-variant", Func: blackVariant},
		{Name: "fuzzy", Func: fuzzy},
	}
}

// ResolveImage returns the src chosen by the first strategy that decides and
// that strategy's name.
func ResolveImage(strategies []ImageStrategy, images []PageImage, name string) (src string, strategy string) {
	if strings.TrimSpace(name) == "" {
		return "", ""
	}
	for _, s := range strategies {
		if src := s.Func(images, name); src != "" {
			return src, s.Name
		}
	}
	return "", ""
}

func altExact(images []PageImage, name string) string {
	name = strings.TrimSpace(name)
	for _, img := range images {
		if strings.EqualFold(img.label(), name) {
			return img.Src
		}
	}
	return ""
}

// the wiki suffixes artwork files with a short marker, "Agumon b.jpg"
const maxSuffixLength = 2

func matchNormalizedPrefix(images []PageImage, variants ...string) string {
	for _, variant := range variants {
		want := textutil.NormalizeName(variant)
		if want == "" {
			continue
		}
		for _, img := range images {
			got := textutil.NormalizeName(img.label())
			if strings.HasPrefix(got, want) && len(got)-len(want) <= maxSuffixLength {
				return img.Src
			}
		}
	}
	return ""
}

func altNormalized(images []PageImage, name string) string {
	return matchNormalizedPrefix(images, name)
}

var xAntibodyRegex = regexp.MustCompile(`(?i)^(.*?)\s*\(?X[- ]?Antibody\)?\s*$`)

func xAntibody(images []PageImage, name string) string {
	groups := xAntibodyRegex.FindStringSubmatch(name)
	if len(groups) < 2 || groups[1] == "" {
		return ""
	}
	base := groups[1]
	return matchNormalizedPrefix(images, base+" X", base+"X Antibody", base+" X-Antibody")
}

var blackRegex = regexp.MustCompile(`(?i)^(?:Black\s+(.+)|(.+?)\s*\(Black\))$`)

func blackVariant(images []PageImage, name string) string {
	groups := blackRegex.FindStringSubmatch(strings.TrimSpace(name))
	if len(groups) < 3 {
		return ""
	}
	base := groups[1]
	if base == "" {
		base = groups[2]
	}
	return matchNormalizedPrefix(images, "Black "+base, base+" Black", base+" (Black)", base+" Kuro")
}

const fuzzyThreshold = 0.92

func fuzzy(images []PageImage, name string) string {
	want := textutil.NormalizeName(name)
	if want == "" {
		return ""
	}
	best := ""
	bestScore := fuzzyThreshold
	for _, img := range images {
		got := textutil.NormalizeName(img.label())
		if got == "" {
			continue
		}
		score := matchr.JaroWinkler(got, want, false)
		if score >= bestScore {
			if score > bestScore || best == "" {
				best = img.Src
			}
			bestScore = score
		}
	}
	return best
}

// icons and flags are never artwork
const minArtworkWidth = 64

func pageImages(doc *goquery.Document) []PageImage {
	images := []PageImage{}
	doc.Find("#mw-content-text img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if strings.TrimSpace(src) == "" {
			return
		}
		alt, _ := img.Attr("alt")
		width := 0
		if w, ok := img.Attr("width"); ok {
			width, _ = strconv.Atoi(strings.TrimSpace(w))
		}
		if width > 0 && width < minArtworkWidth {
			return
		}
		images = append(images, PageImage{Src: strings.TrimSpace(src), Alt: alt, Width: width})
	})
	return images
}
