package textutil

import (
	"regexp"
	"strings"
)

var nonAlnumRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// NormalizeName lowercases name and removes everything that is not a letter
// or a digit, "Omegamon (X-Antibody)" becomes "omegamonxantibody".
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = nonAlnumRegex.ReplaceAllString(name, "")
	return name
}
