package docmodel

import (
	"strings"

	"golang.org/x/net/html"
)

// parseMarker recognises a line that consists of a single region marker comment,
// `<!-- id:NAME -->` or `<!-- /id:NAME -->`.
func parseMarker(text string) (name string, closing bool, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "<!--") || !strings.HasSuffix(trimmed, "-->") {
		return "", false, false
	}

	z := html.NewTokenizer(strings.NewReader(trimmed))
	if z.Next() != html.CommentToken {
		return "", false, false
	}
	data := strings.TrimSpace(string(z.Text()))
	if z.Next() != html.ErrorToken {
		// More than one token on the line: not a standalone marker.
		return "", false, false
	}

	data, closing = strings.CutPrefix(data, "/")
	name, found := strings.CutPrefix(data, "id:")
	name = strings.TrimSpace(name)
	if !found || name == "" || strings.ContainsAny(name, " \t") {
		return "", false, false
	}
	return name, closing, true
}

// MarkerLines returns the opening and closing marker lines for a region.
func MarkerLines(name string) (open, closing string) {
	return "<!-- id:" + name + " -->", "<!-- /id:" + name + " -->"
}
