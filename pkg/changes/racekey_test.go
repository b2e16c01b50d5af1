package changes

import "testing"

func TestParseRaceKey(t *testing.T) {
	tests := []struct {
		input   string
		want    RaceKey
		wantErr bool
	}{
		{input: "existing-0", want: RaceKey{Kind: KeyExisting, Index: 0}},
		{input: "existing-1", want: RaceKey{Kind: KeyExisting, Index: 1}},
		{input: "new-0", want: RaceKey{Kind: KeyNewProposed, Index: 0}},
		{input: "new-3", want: RaceKey{Kind: KeyNewProposed, Index: 3}},
		// A millisecond timestamp marks a reviewer-minted manual row.
		{input: "new-1732000000000", want: RaceKey{Kind: KeyNewManual, Stamp: 1732000000000}},
		{input: "existing-x", wantErr: true},
		{input: "existing--1", wantErr: true},
		{input: "new-", wantErr: true},
		{input: "501", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRaceKey(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRaceKey(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRaceKey(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRaceKey(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRaceKeyString(t *testing.T) {
	keys := []string{"existing-2", "new-1", "new-1732000000000"}
	for _, s := range keys {
		k, err := ParseRaceKey(s)
		if err != nil {
			t.Fatalf("ParseRaceKey(%q) error: %v", s, err)
		}
		if got := k.String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
}
