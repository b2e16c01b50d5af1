package changes

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  any
	}{
		{
			name:  "raw value",
			value: Raw{V: "Paris Marathon"},
			want:  "Paris Marathon",
		},
		{
			name:  "raw nil clears the field",
			value: Raw{V: nil},
			want:  nil,
		},
		{
			name:  "diff yields new",
			value: Diff{Old: 2025, New: 2026},
			want:  2026,
		},
		{
			name: "structured extracts members",
			value: Structured{
				"name": Raw{V: "10K"},
				"year": Diff{Old: 2025, New: 2026},
			},
			want: map[string]any{"name": "10K", "year": 2026},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.value)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	data := []byte(`{
		"name": "Berlin Marathon",
		"year": {"old": 2025, "new": 2026},
		"website": null,
		"organizer": {"name": "SCC Events", "email": "info@example.org"}
	}`)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if diff := cmp.Diff(Raw{V: "Berlin Marathon"}, got["name"]); diff != "" {
		t.Errorf("name mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Diff{Old: float64(2025), New: float64(2026)}, got["year"]); diff != "" {
		t.Errorf("year mismatch (-want +got):\n%s", diff)
	}

	// Explicit null is a clear instruction, not an absent field.
	raw, ok := got["website"].(Raw)
	if !ok || raw.V != nil {
		t.Errorf("website = %#v, want Raw{nil}", got["website"])
	}

	if _, ok := got["organizer"].(Structured); !ok {
		t.Errorf("organizer = %#v, want Structured", got["organizer"])
	}
}

func TestDecodeDiffDetection(t *testing.T) {
	// An object with keys beyond old/new is a nested block, not a Diff.
	data := []byte(`{"pricing": {"old": 10, "new": 12, "currency": "EUR"}}`)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if _, ok := got["pricing"].(Structured); !ok {
		t.Errorf("pricing = %#v, want Structured", got["pricing"])
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	original := map[string]Value{
		"name": Raw{V: "Chamonix Trail"},
		"year": Diff{Old: float64(2025), New: float64(2026)},
	}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
