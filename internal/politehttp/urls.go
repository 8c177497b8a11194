package politehttp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrDisallowedURL means url discovery produced a link the scraper must
// never request, it indicates a bug rather than a runtime condition.
var ErrDisallowedURL = errors.New("disallowed url")

var disallowedNamespaces = []string{
	"Special:",
	"User:",
	"User_talk:",
	"Talk:",
	"MediaWiki:",
	"Help:",
}

// query parameters that turn a page into a dynamic or administrative view
var disallowedParams = []string{
	"action",
	"oldid",
	"diff",
	"curid",
	"printable",
	"search",
	"redlink",
	"veaction",
}

// CheckAllowed returns ErrDisallowedURL if rawUrl points outside of base's
// host, or to an administrative or dynamic page. Category listings with
// `index.php?title=Category:...&pagefrom=...` are allowed.
func CheckAllowed(base *url.URL, rawUrl string) error {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDisallowedURL, rawUrl, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme: %s", ErrDisallowedURL, rawUrl)
	}
	if !strings.EqualFold(parsed.Hostname(), base.Hostname()) {
		return fmt.Errorf("%w: foreign host: %s", ErrDisallowedURL, rawUrl)
	}
	if strings.HasSuffix(parsed.Path, "/api.php") {
		return fmt.Errorf("%w: api endpoint: %s", ErrDisallowedURL, rawUrl)
	}

	query := parsed.Query()
	for _, param := range disallowedParams {
		if query.Has(param) {
			return fmt.Errorf("%w: dynamic page (%s): %s", ErrDisallowedURL, param, rawUrl)
		}
	}

	title := strings.TrimPrefix(parsed.Path, "/")
	if query.Has("title") {
		title = query.Get("title")
	}
	for _, namespace := range disallowedNamespaces {
		if strings.HasPrefix(title, namespace) {
			return fmt.Errorf("%w: administrative page: %s", ErrDisallowedURL, rawUrl)
		}
	}
	return nil
}
