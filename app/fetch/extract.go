package fetch

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/text/unicode/norm"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ExtractText turns fetched HTML into plain text good enough for a
// summarizer. Readability extraction is tried first; when it fails or
// finds nothing, a heuristic strip of the whole document is used so
// malformed markup degrades quality instead of failing the task. An
// empty result is valid output, not an error.
func ExtractText(data []byte, pageURL string) string {
	var u *url.URL
	if parsed, err := url.Parse(pageURL); err == nil {
		u = parsed
	}

	if article, err := readability.FromReader(bytes.NewReader(data), u); err == nil {
		if text := normalize(article.TextContent); text != "" {
			return text
		}
	}

	return normalize(stripMarkup(string(data)))
}

// stripMarkup removes script and style blocks, strips the remaining
// tags, and unescapes entities. Deliberately not a full HTML parser.
func stripMarkup(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

func normalize(s string) string {
	s = norm.NFC.String(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
