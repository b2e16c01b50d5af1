// Package changes provides the canonical in-memory representation of a
// proposed field change, the three-way merge of agent-proposed changes
// with reviewer overrides, and the no-op suppression filter that drops
// changes already matching the stored catalog row.
package changes

import (
	"encoding/json"
	"fmt"
)

// Value is the sum type for one field's proposed change. Exactly three
// shapes exist: Raw (set unconditionally), Diff (old/new pair) and
// Structured (nested object such as the race collection block).
// Consumption sites switch exhaustively over these.
type Value interface {
	isValue()
}

// Raw sets a value unconditionally. A nil V is a meaningful "clear this
// field" instruction, distinct from the field being absent from the
// change set entirely.
type Raw struct {
	V any
}

// Diff proposes New while remembering Old, the value the agent saw when
// it produced the change. Old is provenance: no merge or filter step
// ever replaces it, only New may change.
type Diff struct {
	Old any
	New any
}

// Structured is a nested object of changes, used for the race
// collection block and the organizer block.
type Structured map[string]Value

func (Raw) isValue()        {}
func (Diff) isValue()       {}
func (Structured) isValue() {}

// Extract returns the value a change proposes to store. It is total
// over the sum type: Raw yields the value itself, Diff yields New, and
// Structured yields a plain map with each member extracted.
func Extract(v Value) any {
	switch c := v.(type) {
	case Raw:
		return c.V
	case Diff:
		return c.New
	case Structured:
		out := make(map[string]any, len(c))
		for k, member := range c {
			out[k] = Extract(member)
		}
		return out
	default:
		return nil
	}
}

// ExtractAll extracts every field of a change set into a plain field map.
func ExtractAll(m map[string]Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Extract(v)
	}
	return out
}

// Decode parses a persisted JSON change tree into a change set. JSON
// objects carrying exactly the keys "old" and "new" decode as Diff;
// other objects decode as Structured; everything else, including
// explicit null, decodes as Raw.
func Decode(data []byte) (map[string]Value, error) {
	if len(data) == 0 {
		return map[string]Value{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding change set: %w", err)
	}

	out := make(map[string]Value, len(raw))
	for k, v := range raw {
		out[k] = wrap(v)
	}
	return out, nil
}

// Encode serializes a change set back to its persisted JSON shape.
func Encode(m map[string]Value) ([]byte, error) {
	return json.Marshal(unwrapAll(m))
}

// wrap converts a decoded JSON value into its Value shape.
func wrap(v any) Value {
	m, ok := v.(map[string]any)
	if !ok {
		return Raw{V: v}
	}

	if isDiffObject(m) {
		return Diff{Old: m["old"], New: m["new"]}
	}

	s := make(Structured, len(m))
	for k, member := range m {
		s[k] = wrap(member)
	}
	return s
}

// isDiffObject reports whether a JSON object is an {old,new} pair.
func isDiffObject(m map[string]any) bool {
	if len(m) != 2 {
		return false
	}
	_, hasOld := m["old"]
	_, hasNew := m["new"]
	return hasOld && hasNew
}

func unwrap(v Value) any {
	switch c := v.(type) {
	case Raw:
		return c.V
	case Diff:
		return map[string]any{"old": c.Old, "new": c.New}
	case Structured:
		out := make(map[string]any, len(c))
		for k, member := range c {
			out[k] = unwrap(member)
		}
		return out
	default:
		return nil
	}
}

func unwrapAll(m map[string]Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = unwrap(v)
	}
	return out
}
