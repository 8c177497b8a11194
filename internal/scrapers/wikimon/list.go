package wikimon

import (
	"bytes"
	"context"
	"digimon-scraper/internal/digimon"
	"digimon-scraper/internal/ident"
	"digimon-scraper/pkg/htmlutil"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const selector_category_entries = ".mw-category-group a"

// ExtractList reads the entries of one category listing page. Continuation
// pages are not followed, they are configured as listing urls of their own.
func ExtractList(ctx context.Context, html []byte, base *url.URL) ([]digimon.Stub, error) {
	ctx, span := tracer.Start(ctx, "extract:list")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	stubs := []digimon.Stub{}
	for _, a := range htmlutil.GetAnchors(ctx, doc.Find(selector_category_entries)) {
		if a.Title == "" {
			continue
		}
		id := ident.Of(a.Href)
		if id == "" {
			continue
		}
		stubs = append(stubs, digimon.Stub{
			Id:   id,
			Name: a.Title,
			Href: absoluteUrl(base, a.Href),
		})
	}
	return stubs, nil
}
