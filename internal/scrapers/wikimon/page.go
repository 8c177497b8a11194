package wikimon

import (
	"bytes"
	"context"
	"digimon-scraper/internal/components/assert"
	"digimon-scraper/internal/components/telemetry"
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/ident"
	"digimon-scraper/pkg/htmlutil"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_extract_identifier = "extract.identifier"
	report_extract_image      = "extract.image"
	report_extract_strategy   = "extract.image-strategy"
)

var tracer = otel.Tracer("digimon-scraper.internal.scrapers.wikimon")

const (
	selector_title     = "#firstHeading"
	selector_no_text   = ".noarticletext"
	selector_info_box  = "#StatsBoxMorphContent1 table"
	selector_category  = `th a[title^="Category:"]`
	selector_desc      = `#mw-content-text #TopLayerMorphContent1 #pn1aCurrentMultiMorphContent1 td[valign="top"]`
	selector_desc_book = `#mw-content-text #TopLayerMorphContent1 #pnDigimonRefBookMultiMorphContent1 td[valign="top"]`
	selector_desc_link = "span.pnDigimonRefBookMultiMorphLink2"
)

// artwork smaller than this is a thumbnail of something else
const minSecondaryWidth = 100

// ImagePath is where the artwork of the record or category with id is
// referenced from in the dataset.
func ImagePath(id string) string {
	return "img/" + id + ".png"
}

// PageExtractor turns detail pages into records.
type PageExtractor struct {
	base       *url.URL
	imageDir   string
	strategies []ImageStrategy
	tel        telemetry.API
}

// NewPageExtractor creates a PageExtractor, imageDir is consulted for artwork
// downloaded by earlier runs when a page has no usable image.
func NewPageExtractor(base *url.URL, imageDir string, strategies []ImageStrategy, tel telemetry.API) PageExtractor {
	assert.NotNil(base)
	assert.NotNil(tel)
	if strategies == nil {
		strategies = DefaultImageStrategies()
	}
	return PageExtractor{
		base:       base,
		imageDir:   imageDir,
		strategies: strategies,
		tel:        telemetry.NewScopedAPI("wikimon", tel).Scope("page"),
	}
}

// Extract reads the record out of a detail page. It returns nil without an
// error for pages that have no article.
func (e PageExtractor) Extract(ctx context.Context, html []byte, sourceUrl string) (*digimon.Creature, error) {
	_, span := tracer.Start(ctx, "extract:page")
	defer span.End()
	span.SetAttributes(attribute.String("custom.url", sourceUrl))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, fmt.Errorf("parse %s: %w", sourceUrl, err)
	}

	name := htmlutil.Text(doc.Find(selector_title).First())
	if name == "" || doc.Find(selector_no_text).Length() > 0 {
		span.AddEvent("no article")
		return nil, nil
	}

	id := ident.Of(sourceUrl)
	if id == "" {
		e.tel.ReportWarning(report_extract_identifier, fmt.Errorf("no identifier for %s", sourceUrl))
	}

	infoBox := doc.Find(selector_info_box).First()

	creature := &digimon.Creature{
		Href:        sourceUrl,
		Id:          id,
		Name:        name,
		Names:       nameHints(doc),
		Description: description(doc),
		Levels:      infoValues(infoBox, field_level),
		Classes:     infoValues(infoBox, field_class),
		Types:       infoValues(infoBox, field_type),
		Attributes:  infoValues(infoBox, field_attribute),
		Fields:      infoValues(infoBox, field_field),
		MinWeights:  parseWeights(infoValues(infoBox, field_weight)),
		Categories:  e.categories(infoBox),
	}
	for _, level := range creature.Levels {
		if stage, ok := digimon.ParseStage(level); ok {
			creature.Level = stage
			break
		}
	}
	if len(creature.Classes) > 0 {
		creature.DigimonClass = creature.Classes[0]
	}
	creature.MinWeight = minOf(creature.MinWeights)

	creature.EvolvesFrom = parseEvolutions(evolutionList(doc, "Evolves_From", "Evolves From"), e.base, id)
	creature.EvolvesTo = parseEvolutions(evolutionList(doc, "Evolves_To", "Evolves To"), e.base, id)

	e.resolveArtwork(doc, infoBox, creature)

	span.SetAttributes(
		attribute.String("custom.id", id),
		attribute.Int("custom.evolves_from", len(creature.EvolvesFrom)),
		attribute.Int("custom.evolves_to", len(creature.EvolvesTo)),
	)
	return creature, nil
}

func description(doc *goquery.Document) string {
	td := doc.Find(selector_desc)
	if td.Length() == 0 {
		td = doc.Find(selector_desc_book)
	}
	td = td.Clone()
	td.Find(selector_desc_link).Remove()

	text := htmlutil.Text(td)
	text = strings.Replace(text, "⇨ Japanese", "", 1)
	return strings.TrimSpace(text)
}

func (e PageExtractor) categories(infoBox *goquery.Selection) []digimon.Category {
	categories := []digimon.Category{}
	seen := map[string]struct{}{}

	infoBox.Find(selector_category).Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		title := strings.TrimSpace(a.AttrOr("title", ""))
		src := imageSrc(a.Find("img").First())
		if href == "" || src == "" {
			return
		}

		id := strings.TrimPrefix(ident.Of(href), "Category_")
		name := strings.TrimSpace(strings.TrimPrefix(title, "Category:"))
		if id == "" || name == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		categories = append(categories, digimon.Category{
			Id:      id,
			Name:    name,
			Img:     ImagePath(id),
			Title:   title,
			Href:    absoluteUrl(e.base, href),
			IconUrl: absoluteUrl(e.base, src),
		})
	})
	return categories
}

// resolveArtwork fills Img and ImgOrigin, the info box image wins over any
// other image of the page.
func (e PageExtractor) resolveArtwork(doc *goquery.Document, infoBox *goquery.Selection, creature *digimon.Creature) {
	if creature.Id == "" {
		return
	}

	src := imageSrc(infoBox.Find("a.image img, a.mw-file-description img").First())
	if src == "" {
		src = secondaryImage(doc)
	}
	if src == "" {
		var strategy string
		src, strategy = ResolveImage(e.strategies, pageImages(doc), creature.Name)
		if strategy != "" {
			e.tel.ReportDebug(report_extract_strategy, "id", creature.Id, "strategy", strategy)
		}
	}

	if src != "" {
		img := ImagePath(creature.Id)
		origin := absoluteUrl(e.base, src)
		creature.Img = &img
		creature.ImgOrigin = &origin
		return
	}

	if e.imageDir != "" {
		_, err := os.Stat(filepath.Join(e.imageDir, creature.Id+".png"))
		if err == nil {
			img := ImagePath(creature.Id)
			creature.Img = &img
			return
		}
	}
	e.tel.ReportWarning(report_extract_image, fmt.Errorf("no artwork for %s", creature.Href))
}

func imageSrc(img *goquery.Selection) string {
	src, _ := img.Attr("src")
	return strings.TrimSpace(src)
}

func secondaryImage(doc *goquery.Document) string {
	src := ""
	doc.Find("table.infobox img, #mw-content-text table img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		width, err := strconv.Atoi(strings.TrimSpace(img.AttrOr("width", "")))
		if err != nil || width < minSecondaryWidth {
			return true
		}
		src = imageSrc(img)
		return src == ""
	})
	return src
}

// absoluteUrl resolves href against the site's base url.
func absoluteUrl(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return strings.TrimSuffix(base.String(), "/") + "/" + strings.TrimPrefix(href, "/")
	}
	return base.ResolveReference(ref).String()
}
