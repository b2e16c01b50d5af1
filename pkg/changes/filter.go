package changes

import (
	"encoding/json"
	"sort"
	"time"
)

// Changed returns the subset of proposed fields whose normalized value
// differs from the currently stored value. Both sides are normalized
// first: nil, absent and empty string collapse to nil; timestamps
// compare as instants regardless of input format; arrays compare
// order-insensitively; objects compare by canonical serialization.
//
// Dropping no-op changes avoids spurious writes and keeps the audit
// trail free of noise; an empty result also means the owning event does
// not need a reindex touch for these fields.
func Changed(proposed, current map[string]any) map[string]any {
	out := make(map[string]any)
	for field, value := range proposed {
		if canonical(value) != canonical(current[field]) {
			out[field] = value
		}
	}
	return out
}

// timeFormats are the accepted inbound timestamp layouts, most specific
// first.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// canonical renders a value into a normalized, comparable string.
func canonical(v any) string {
	data, err := json.Marshal(normalize(v))
	if err != nil {
		// Unmarshalable values only ever come from in-process callers;
		// fall back to inequality by identity.
		return "?"
	}
	return string(data)
}

// normalize rewrites a value into its canonical comparable form.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		if instant, ok := parseTime(t); ok {
			return instant.UTC().Format(time.RFC3339Nano)
		}
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case []any:
		return normalizeSlice(t)
	case []string:
		generic := make([]any, len(t))
		for i, s := range t {
			generic[i] = s
		}
		return normalizeSlice(generic)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, member := range t {
			out[k] = normalize(member)
		}
		return out
	default:
		return t
	}
}

// normalizeSlice canonicalizes array elements and sorts them so
// comparison is order-insensitive.
func normalizeSlice(s []any) []any {
	rendered := make([]string, len(s))
	for i, member := range s {
		rendered[i] = canonical(member)
	}
	sort.Strings(rendered)

	out := make([]any, len(rendered))
	for i, r := range rendered {
		out[i] = r
	}
	return out
}

// parseTime attempts to parse a string as a timestamp in any accepted
// layout.
func parseTime(s string) (time.Time, bool) {
	if len(s) < 8 || s[0] < '0' || s[0] > '9' {
		return time.Time{}, false
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
