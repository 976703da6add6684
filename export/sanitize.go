package export

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// calendarStyles are the inline style properties calendar templates emit.
var calendarStyles = []string{
	"color", "background-color", "opacity",
	"border", "border-color", "border-left", "border-radius",
	"padding", "margin", "width", "height", "min-height",
	"font-size", "font-weight", "text-align",
	"display", "gap", "grid-template-columns",
}

// UGCSanitizer strips scripts, event handlers and external frames from
// untrusted markup while keeping the classes and inline styles calendar
// templates rely on.
type UGCSanitizer struct {
	policy *bluemonday.Policy
}

// NewUGCSanitizer builds a sanitizer on top of bluemonday's UGC policy.
func NewUGCSanitizer() *UGCSanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class", "id").Globally()
	policy.AllowStyles(calendarStyles...).Globally()
	policy.AllowElements("div", "span", "section", "header", "footer", "main", "article", "time")
	policy.AllowDataAttributes()
	return &UGCSanitizer{policy: policy}
}

// Sanitize implements Sanitizer.
func (s *UGCSanitizer) Sanitize(markup string) string {
	if s == nil || s.policy == nil {
		return markup
	}
	return strings.TrimSpace(s.policy.Sanitize(markup))
}
