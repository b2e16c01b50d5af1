package changes

import (
	"strconv"

	"github.com/raceatlas/raceatlas/pkg/logging"
)

// FieldRaces is the change-set key holding the race sub-collection block.
const FieldRaces = "races"

// Keys inside the race collection block. The agent writes the update,
// add and delete arrays; the merge folds reviewer overrides into them
// and carries positional reviewer edits under RacesEdits for the race
// reconciliation step to resolve.
const (
	RacesUpdate = "update"
	RacesAdd    = "add"
	RacesDelete = "delete"
	RacesEdits  = "edits"
)

// RaceDeletedField marks a reviewer edit entry as a deletion flag
// rather than a field override.
const RaceDeletedField = "_deleted"

// RaceRemovedField marks an add-list reviewer edit as removed: the
// agent-proposed new race must not be created.
const RaceRemovedField = "_removed"

// Merge three-way merges agent-proposed changes with reviewer
// overrides. It is pure and deterministic; when overrides is empty the
// agent change set is returned unchanged.
//
// For every override key: a Diff in the agent changes keeps its Old and
// takes the override as New; any other shape is replaced wholesale. The
// race collection block gets the nested merge in mergeRaces.
func Merge(agent, overrides map[string]Value) map[string]Value {
	if len(overrides) == 0 {
		return agent
	}

	merged := make(map[string]Value, len(agent))
	for k, v := range agent {
		merged[k] = v
	}

	for key, override := range overrides {
		if key == FieldRaces {
			merged[key] = mergeRaces(merged[key], override)
			continue
		}

		if d, ok := merged[key].(Diff); ok {
			// Old is provenance and survives; only New is replaced.
			merged[key] = Diff{Old: d.Old, New: Extract(override)}
			continue
		}

		merged[key] = override
	}

	return merged
}

// mergeRaces folds reviewer race overrides into the agent's race block.
// Override keys are either the persisted id of a race in the agent's
// update array, a "new-{i}" add-list index, or a positional/manual key
// that cannot be folded and is carried under RacesEdits for the
// reconciliation step. Unmatched keys are logged and skipped; a
// malformed reviewer edit never blocks the agent-proposed changes.
func mergeRaces(agent, override Value) Value {
	block := Structured{}
	if s, ok := agent.(Structured); ok {
		for k, v := range s {
			block[k] = v
		}
	}

	edits := Structured{}
	if existing, ok := block[RacesEdits].(Structured); ok {
		for k, v := range existing {
			edits[k] = v
		}
	}

	overrideBlock, ok := override.(Structured)
	if !ok {
		logging.Warn().Msg("race overrides are not a nested object, ignoring")
		return block
	}

	for key, edit := range overrideBlock {
		if id, err := strconv.ParseInt(key, 10, 64); err == nil {
			if !mergeRaceUpdateByID(block, id, edit) {
				logging.Warn().Int64("race_id", id).Msg("race override does not match any proposed update, skipping")
			}
			continue
		}

		parsed, err := ParseRaceKey(key)
		if err != nil {
			logging.Warn().Str("key", key).Msg("unrecognized race override key, skipping")
			continue
		}

		switch parsed.Kind {
		case KeyNewProposed:
			if !mergeRaceAddition(block, parsed.Index, edit) {
				logging.Warn().Int("index", parsed.Index).Msg("race override addresses a missing add-list entry, skipping")
			}
		default:
			// Positional updates and manual creations are resolved
			// during race reconciliation, once persisted ids are known.
			edits[key] = edit
		}
	}

	if len(edits) > 0 {
		block[RacesEdits] = edits
	}
	return block
}

// mergeRaceUpdateByID merges reviewer field overrides into the updates
// sub-map of the agent update entry carrying the given persisted id.
func mergeRaceUpdateByID(block Structured, id int64, edit Value) bool {
	updates, ok := rawSlice(block[RacesUpdate])
	if !ok {
		return false
	}

	for i, entry := range updates {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if entryID, ok := numericID(m["id"]); !ok || entryID != id {
			continue
		}

		copied := copySlice(updates)
		merged := copyMap(m)
		fields, _ := merged["updates"].(map[string]any)
		fields = copyMap(fields)
		for f, v := range editFields(edit) {
			fields[f] = v
		}
		merged["updates"] = fields
		copied[i] = merged
		block[RacesUpdate] = Raw{V: copied}
		return true
	}
	return false
}

// mergeRaceAddition shallow-merges reviewer fields into the i-th entry
// of the agent's add list.
func mergeRaceAddition(block Structured, index int, edit Value) bool {
	adds, ok := rawSlice(block[RacesAdd])
	if !ok || index >= len(adds) {
		return false
	}

	entry, ok := adds[index].(map[string]any)
	if !ok {
		return false
	}

	copied := copySlice(adds)
	merged := copyMap(entry)
	for f, v := range editFields(edit) {
		merged[f] = v
	}
	copied[index] = merged
	block[RacesAdd] = Raw{V: copied}
	return true
}

// editFields extracts a reviewer edit into a plain field map.
func editFields(edit Value) map[string]any {
	switch e := edit.(type) {
	case Structured:
		out := make(map[string]any, len(e))
		for k, v := range e {
			out[k] = Extract(v)
		}
		return out
	case Raw:
		if m, ok := e.V.(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// rawSlice unwraps a Raw-held []any.
func rawSlice(v Value) ([]any, bool) {
	r, ok := v.(Raw)
	if !ok {
		return nil, false
	}
	s, ok := r.V.([]any)
	return s, ok
}

// numericID coerces a decoded JSON id into an int64.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySlice(s []any) []any {
	out := make([]any, len(s))
	copy(out, s)
	return out
}
