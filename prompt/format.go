// Package prompt renders instruction templates. Placeholders are written
// <<key>> and filled from a data map; keys the map does not provide render as
// the literal "(Not Available)" so the model can see what it was not given.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// NotAvailable is substituted for placeholders with no value.
const NotAvailable = "(Not Available)"

// placeholderRe matches <<key>> non-greedily so adjacent placeholders stay
// separate.
var placeholderRe = regexp.MustCompile(`<<(.*?)>>`)

// Format substitutes every <<key>> placeholder in template. Values are
// rendered with %v and trimmed of surrounding whitespace. The template passes
// through in a single pass; substituted values are never re-scanned.
func Format(template string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		value, ok := data[key]
		if !ok {
			return NotAvailable
		}
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	})
}
