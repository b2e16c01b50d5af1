package apply

import (
	"time"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/changes"
)

// extractBlock extracts the fields of one block from a merged change
// set into a plain field map. The race collection never appears here;
// it is reconciled separately.
func extractBlock(merged map[string]changes.Value, b blocks.Block) map[string]any {
	out := make(map[string]any)
	for field, value := range merged {
		if field == changes.FieldRaces {
			continue
		}
		if blocks.Classify(field) == b {
			out[field] = changes.Extract(value)
		}
	}
	return out
}

// Coercion helpers for decoded JSON payloads.

func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func f64ptr(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func f64(m map[string]any, key string) float64 {
	if p := f64ptr(m, key); p != nil {
		return *p
	}
	return 0
}

func intVal(m map[string]any, key string) int {
	if p := f64ptr(m, key); p != nil {
		return int(*p)
	}
	return 0
}

func timePtr(m map[string]any, key string) *time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
