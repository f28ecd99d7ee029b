package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag.  Stored text is plain; the front end escapes
// it on render.
var textPolicy = bluemonday.StrictPolicy()

func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
