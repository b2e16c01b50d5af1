package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSlug(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want string
	}{
		{"Berlin Marathon", 7, "berlin-marathon-7"},
		{"Course de l'Escalade", 12, "course-de-l-escalade-12"},
		{"Zürich Citylauf", 3, "zurich-citylauf-3"},
		{"Médoc  Trail!", 44, "medoc-trail-44"},
		{"100km del Passatore", 5, "100km-del-passatore-5"},
		{"***", 9, "event-9"},
		{"", 1, "event-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, makeSlug(tt.name, tt.id))
		})
	}
}
