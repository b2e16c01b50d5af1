package changes

import (
	"fmt"
	"strconv"
	"strings"
)

// RaceKeyKind tags the three ways a reviewer edit addresses a race row
// that may not have a persisted identifier yet.
type RaceKeyKind int

const (
	// KeyExisting addresses the i-th element of the agent's
	// races-to-update array. The correspondence is positional against
	// that array, never against the currently stored races.
	KeyExisting RaceKeyKind = iota

	// KeyNewProposed addresses the i-th entry of the agent's add list.
	KeyNewProposed

	// KeyNewManual is a reviewer-only creation, keyed by the
	// millisecond timestamp the review UI minted when the row was added.
	KeyNewManual
)

// manualKeyThreshold separates add-list indexes from timestamp keys: a
// new-{n} key with n above this is a reviewer-minted timestamp, not an
// array index.
const manualKeyThreshold = 1_000_000

// RaceKey is a parsed synthetic race identifier. String keys such as
// "existing-0" or "new-1732000000000" are parsed once at the boundary
// and never re-parsed downstream.
type RaceKey struct {
	Kind  RaceKeyKind
	Index int   // valid for KeyExisting and KeyNewProposed
	Stamp int64 // valid for KeyNewManual
}

// ParseRaceKey parses a synthetic race key string.
func ParseRaceKey(s string) (RaceKey, error) {
	switch {
	case strings.HasPrefix(s, "existing-"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "existing-"))
		if err != nil || n < 0 {
			return RaceKey{}, fmt.Errorf("invalid existing race key %q", s)
		}
		return RaceKey{Kind: KeyExisting, Index: n}, nil

	case strings.HasPrefix(s, "new-"):
		n, err := strconv.ParseInt(strings.TrimPrefix(s, "new-"), 10, 64)
		if err != nil || n < 0 {
			return RaceKey{}, fmt.Errorf("invalid new race key %q", s)
		}
		if n > manualKeyThreshold {
			return RaceKey{Kind: KeyNewManual, Stamp: n}, nil
		}
		return RaceKey{Kind: KeyNewProposed, Index: int(n)}, nil

	default:
		return RaceKey{}, fmt.Errorf("unrecognized race key %q", s)
	}
}

// String renders the key back to its wire form.
func (k RaceKey) String() string {
	switch k.Kind {
	case KeyExisting:
		return fmt.Sprintf("existing-%d", k.Index)
	case KeyNewProposed:
		return fmt.Sprintf("new-%d", k.Index)
	case KeyNewManual:
		return fmt.Sprintf("new-%d", k.Stamp)
	default:
		return "invalid"
	}
}
