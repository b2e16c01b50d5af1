package changes

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestChangedDropsEqualValues(t *testing.T) {
	got := Changed(
		map[string]any{"name": "Paris"},
		map[string]any{"name": "Paris"},
	)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestChangedKeepsDifferingValues(t *testing.T) {
	got := Changed(
		map[string]any{"name": "Paris", "city": "Paris"},
		map[string]any{"name": "Paris Marathon", "city": "Paris"},
	)
	want := map[string]any{"name": "Paris"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Changed() mismatch (-want +got):\n%s", diff)
	}
}

func TestChangedDateFormatInsensitive(t *testing.T) {
	stored := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		proposed any
	}{
		{name: "RFC3339 with millis", proposed: "2026-01-01T00:00:00.000Z"},
		{name: "RFC3339", proposed: "2026-01-01T00:00:00Z"},
		{name: "date only", proposed: "2026-01-01"},
		{name: "time value", proposed: stored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Changed(
				map[string]any{"start_date": tt.proposed},
				map[string]any{"start_date": stored},
			)
			if len(got) != 0 {
				t.Errorf("expected date formats to compare equal, got %v", got)
			}
		})
	}
}

func TestChangedNullAndEmptyCollapse(t *testing.T) {
	got := Changed(
		map[string]any{"website": ""},
		map[string]any{"website": nil},
	)
	if len(got) != 0 {
		t.Errorf("empty string and nil should compare equal, got %v", got)
	}

	// Absent current value counts as nil too.
	got = Changed(
		map[string]any{"website": nil},
		map[string]any{},
	)
	if len(got) != 0 {
		t.Errorf("clearing an absent field is a no-op, got %v", got)
	}

	// But a real clear of a stored value survives.
	got = Changed(
		map[string]any{"website": nil},
		map[string]any{"website": "https://example.org"},
	)
	if _, ok := got["website"]; !ok {
		t.Error("clearing a stored value must be kept")
	}
}

func TestChangedArraysOrderInsensitive(t *testing.T) {
	got := Changed(
		map[string]any{"tags": []any{"trail", "night", "relay"}},
		map[string]any{"tags": []any{"relay", "trail", "night"}},
	)
	if len(got) != 0 {
		t.Errorf("array order must not matter, got %v", got)
	}

	got = Changed(
		map[string]any{"tags": []any{"trail", "road"}},
		map[string]any{"tags": []any{"trail", "night"}},
	)
	if _, ok := got["tags"]; !ok {
		t.Error("differing arrays must be kept")
	}
}

func TestChangedNumericTypesCompareEqual(t *testing.T) {
	got := Changed(
		map[string]any{"distance_km": float64(42)},
		map[string]any{"distance_km": 42},
	)
	if len(got) != 0 {
		t.Errorf("int and float of same value should compare equal, got %v", got)
	}
}

func TestChangedNestedObjects(t *testing.T) {
	got := Changed(
		map[string]any{"meta": map[string]any{"a": 1, "b": ""}},
		map[string]any{"meta": map[string]any{"b": nil, "a": 1.0}},
	)
	if len(got) != 0 {
		t.Errorf("canonicalized objects should compare equal, got %v", got)
	}
}
