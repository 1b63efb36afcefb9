package domain

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultLabel replaces a description that is missing or empty after cleaning.
const DefaultLabel = "Untitled"

var labelPolicy = bluemonday.StrictPolicy()

// CleanLabel strips markup and surrounding whitespace from a free-text label.
func CleanLabel(s string) string {
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(s)))
}
