package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("digimon-scraper.pkg.htmlutil")

// GetText returns the concatenated text of every text node under node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	// <br> separates words visually, it must separate them in text too
	if node.Type == html.ElementNode && node.Data == "br" {
		buffer.WriteByte(' ')
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses runs of whitespace into a single space and drops
// non printable characters.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Text is CleanText over the text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var text strings.Builder
	for _, n := range sel.Nodes {
		text.WriteString(GetText(n))
	}
	return CleanText(text.String())
}

type Anchor struct {
	Name  string
	Title string
	Href  string
}

// GetAnchors returns the anchors in sel, anchors without an href are skipped.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	sel.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		title, _ := a.Attr("title")

		anchor := Anchor{
			Name:  Text(a),
			Title: strings.TrimSpace(title),
			Href:  href,
		}
		anchors = append(anchors, anchor)
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", anchor.Name),
			attribute.String("url", anchor.Href),
		))
	})

	return anchors
}
