package wikimon

import (
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/ident"
	"digimon-scraper/pkg/htmlutil"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// generic wildcards and card game references are not evolutions to a creature
var noiseRegex = regexp.MustCompile(`^(Any .*Digimon|Digimon Card Game|Category:)`)

var (
	referenceRegex   = regexp.MustCompile(`\[[0-9]+\]`)
	noteRefRegex     = regexp.MustCompile(`\[[A-Z\s]?[0-9]+\]`)
	parentheticRegex = regexp.MustCompile(`\((.*)\)`)
)

// IsNoise reports whether an evolution entry named name is dropped.
func IsNoise(name string) bool {
	return noiseRegex.MatchString(name)
}

// evolutionList returns the list that follows the heading with the given
// anchor id ("Evolves_From"), or the heading whose text is title.
func evolutionList(doc *goquery.Document, anchorId, title string) *goquery.Selection {
	heading := doc.Find("#" + anchorId).First()
	if heading.Length() > 0 && !heading.Is("h2") {
		if h2 := heading.Closest("h2"); h2.Length() > 0 {
			heading = h2
		}
	}
	if heading.Length() == 0 {
		heading = doc.Find("h2").FilterFunction(func(_ int, h *goquery.Selection) bool {
			text := htmlutil.Text(h.Find(".mw-headline"))
			if text == "" {
				text = htmlutil.Text(h)
			}
			return strings.EqualFold(text, title)
		}).First()
	}
	if heading.Length() == 0 {
		return heading
	}
	// newer mediawiki wraps headings in <div class="mw-heading">
	if parent := heading.Parent(); parent.HasClass("mw-heading") {
		heading = parent
	}

	for s := heading.Next(); s.Length() > 0; s = s.Next() {
		if s.Is("ul") {
			return s
		}
		if s.Is("h2, div.mw-heading") {
			break
		}
	}
	return heading.Next().Filter("ul")
}

// evolutionAnchor picks the anchor of a list item that names the creature,
// image links and anchors without a title are skipped.
func evolutionAnchor(li *goquery.Selection) *goquery.Selection {
	return li.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		title, _ := a.Attr("title")
		return strings.TrimSpace(href) != "" &&
			strings.TrimSpace(title) != "" &&
			!a.HasClass("image") &&
			!a.HasClass("mw-file-description")
	}).First()
}

func isRedLink(a *goquery.Selection, href string) bool {
	return a.HasClass("new") || strings.Contains(href, "redlink=1")
}

// parseEvolutions turns the items of an evolution list into edges.
func parseEvolutions(list *goquery.Selection, base *url.URL, selfId string) []digimon.Edge {
	edges := []digimon.Edge{}
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		a := evolutionAnchor(li)
		if a.Length() == 0 {
			return
		}
		href, _ := a.Attr("href")
		title, _ := a.Attr("title")
		href = strings.TrimSpace(href)
		title = strings.TrimSpace(title)

		if isRedLink(a, href) || IsNoise(title) {
			return
		}
		id := ident.Of(href)
		if id == "" || id == selfId {
			return
		}

		line := htmlutil.CleanText(referenceRegex.ReplaceAllString(htmlutil.Text(li), ""))

		edges = append(edges, digimon.Edge{
			Id:    id,
			Name:  title,
			Url:   absoluteUrl(base, href),
			Canon: li.Find("b").Length() > 0,
			Note:  evolutionNote(line, title),
			Line:  line,
		})
	})
	return edges
}

// evolutionNote is the parenthetical remark of an evolution line, like the
// partner or item needed, without the target's own name.
func evolutionNote(line, title string) string {
	groups := parentheticRegex.FindStringSubmatch(line)
	if len(groups) < 2 {
		return ""
	}
	note := strings.Replace(groups[1], title, "", 1)
	note = noteRefRegex.ReplaceAllString(note, "")
	return htmlutil.CleanText(note)
}
