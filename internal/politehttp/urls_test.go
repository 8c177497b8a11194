package politehttp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckAllowed(t *testing.T) {
	base, err := url.Parse("https://wikimon.net")
	require.Nil(t, err)

	testCases := []struct {
		url     string
		allowed bool
	}{
		{url: "https://wikimon.net/Agumon", allowed: true},
		{url: "https://wikimon.net/Category:Child_Level", allowed: true},
		{url: "https://wikimon.net/index.php?title=Category:Adult_Level&pagefrom=Mad+Leomon%3A+Armed+Mode#mw-pages", allowed: true},
		{url: "https://wikimon.net/images/thumb/a/ab/Agumon.jpg/320px-Agumon.jpg", allowed: true},
		{url: "https://WIKIMON.net/Agumon", allowed: true},
		{url: "https://wikimon.net/Special:RecentChanges", allowed: false},
		{url: "https://wikimon.net/index.php?title=Special:Search&search=agumon", allowed: false},
		{url: "https://wikimon.net/index.php?title=Agumon&action=edit", allowed: false},
		{url: "https://wikimon.net/index.php?title=Agumon&oldid=1234", allowed: false},
		{url: "https://wikimon.net/index.php?title=Agumon&action=edit&redlink=1", allowed: false},
		{url: "https://wikimon.net/User:Lanate", allowed: false},
		{url: "https://wikimon.net/api.php?action=query", allowed: false},
		{url: "https://example.com/Agumon", allowed: false},
		{url: "ftp://wikimon.net/Agumon", allowed: false},
		{url: "://broken", allowed: false},
	}
	for _, test := range testCases {
		err := CheckAllowed(base, test.url)
		if test.allowed {
			require.Nil(t, err, test.url)
			continue
		}
		require.ErrorIs(t, err, ErrDisallowedURL, test.url)
	}
}
