package validate

import "time"

// dateLayouts is the tolerant parser's layout list, tried in order. A
// failure to parse under any layout is the field-type-level ERROR spec.md
// §4.4.5 calls for. The expression engine has no date parsing of its own
// and does not use this list.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

// parseDate tries every known layout, returning ok=false when none match;
// the field-type check reports that outcome as an ERROR.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
