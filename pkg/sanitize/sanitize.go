package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all markup.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips any HTML from user input and trims surrounding whitespace.
// bluemonday escapes what it keeps, so the result is unescaped again before it
// is stored; templates escape on output.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(s)))
}
