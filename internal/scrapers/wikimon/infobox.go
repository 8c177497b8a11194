package wikimon

import (
	"digimon-scraper/pkg/htmlutil"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// field is how a labelled row of the info box is located, Text is optional
// and constrains the label anchor's own text when several rows share a title.
type field struct {
	Title string
	Text  string
}

var (
	field_level     = field{Title: "Evolution Stage", Text: "Level"}
	field_class     = field{Title: "Evolution Stage", Text: "Class"}
	field_type      = field{Title: "Type"}
	field_attribute = field{Title: "Attribute"}
	field_field     = field{Title: "Field"}
	field_weight    = field{Title: "Weight"}
)

var valueNoise = strings.NewReplacer("\n", " ", "－", "")

func cleanValue(sel *goquery.Selection) string {
	return htmlutil.CleanText(valueNoise.Replace(htmlutil.Text(sel)))
}

// labelRow returns the row holding the label of f, the selection is empty if
// the info box has no such row.
func labelRow(infoBox *goquery.Selection, f field) *goquery.Selection {
	anchors := infoBox.Find(fmt.Sprintf(`td a[title=%q]`, f.Title))
	if f.Text != "" {
		anchors = anchors.FilterFunction(func(_ int, a *goquery.Selection) bool {
			return htmlutil.Text(a) == f.Text
		})
	}
	return anchors.First().Closest("tr")
}

// rowValues reads the values of a labelled row. The label cell's rowspan says
// how many rows belong to the field: the label row holds its value in the
// second cell, every following row in its first cell.
func rowValues(row *goquery.Selection) []string {
	values := []string{}
	if row.Length() == 0 {
		return values
	}

	count := 1
	if rowspan, ok := row.Find("td").First().Attr("rowspan"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(rowspan))
		if err == nil && n > 0 {
			count = n
		}
	}

	if v := cleanValue(row.Find("td").Eq(1)); v != "" {
		values = append(values, v)
	}
	next := row
	for i := 1; i < count; i++ {
		next = next.Next()
		if next.Length() == 0 {
			break
		}
		if v := cleanValue(next.Find("td").First()); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func infoValues(infoBox *goquery.Selection, f field) []string {
	return rowValues(labelRow(infoBox, f))
}

var weightRegex = regexp.MustCompile(`(\d+(?:,\d{3})*)\s*g`)

// parseWeights reads every "<n>g" out of the weight values, "500g 520g" and
// separate rows of "500g", "520g" give the same result.
func parseWeights(values []string) []int {
	weights := []int{}
	for _, v := range values {
		for _, groups := range weightRegex.FindAllStringSubmatch(v, -1) {
			n, err := strconv.Atoi(strings.ReplaceAll(groups[1], ",", ""))
			if err != nil {
				continue
			}
			weights = append(weights, n)
		}
	}
	return weights
}

func minOf(values []int) *int {
	if len(values) == 0 {
		return nil
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return &min
}

// nameHints reads the "<Label>:" rows of the name table, like "Dub:", into
// lowercase keys.
func nameHints(doc *goquery.Document) map[string]string {
	names := map[string]string{}
	nameTable := doc.Find("#S2NameEtyMorphContent1 table").First()
	nested := nameTable.Find("table").First()
	if nested.Length() > 0 {
		nameTable = nested
	}

	nameTable.Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := cleanValue(row.ChildrenFiltered("td").First())
		if !strings.HasSuffix(label, ":") || len(label) < 2 {
			return
		}
		key := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(label, ":")))
		if _, seen := names[key]; seen {
			return
		}
		values := rowValues(row)
		if len(values) == 0 {
			return
		}
		names[key] = strings.Join(values, ", ")
	})
	return names
}
