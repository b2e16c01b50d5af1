package apply

import (
	"context"
	"sort"
	"strconv"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// raceUpdate is one agent-proposed update addressed by persisted id.
// The slice order of updates is load-bearing: positional reviewer keys
// (existing-i) resolve against it.
type raceUpdate struct {
	id     int64
	fields map[string]any
}

// raceSet is the parsed race collection block of a merged change set.
type raceSet struct {
	updates []raceUpdate
	adds    []map[string]any
	deletes []int64
	edits   map[changes.RaceKey]map[string]any
}

func (rs raceSet) empty() bool {
	return len(rs.updates) == 0 && len(rs.adds) == 0 && len(rs.deletes) == 0 && len(rs.edits) == 0
}

// parseRaceSet parses the race block. Malformed entries degrade to
// warnings; a broken reviewer edit never blocks the agent's changes.
func parseRaceSet(v changes.Value, res *proposals.ApplicationResult) raceSet {
	rs := raceSet{edits: map[changes.RaceKey]map[string]any{}}

	block, ok := v.(changes.Structured)
	if !ok {
		return rs
	}

	for _, entry := range blockSlice(block, changes.RacesUpdate) {
		m, ok := entry.(map[string]any)
		if !ok {
			res.AddWarning("races", "malformed race update entry skipped")
			continue
		}
		id, ok := coerceID(m["id"])
		if !ok {
			res.AddWarning("races", "race update entry without a valid id skipped")
			continue
		}
		fields, _ := m["updates"].(map[string]any)
		rs.updates = append(rs.updates, raceUpdate{id: id, fields: fields})
	}

	for _, entry := range blockSlice(block, changes.RacesAdd) {
		if m, ok := entry.(map[string]any); ok {
			rs.adds = append(rs.adds, m)
		} else {
			res.AddWarning("races", "malformed race addition entry skipped")
		}
	}

	for _, entry := range blockSlice(block, changes.RacesDelete) {
		if id, ok := coerceID(entry); ok {
			rs.deletes = append(rs.deletes, id)
		} else {
			res.AddWarning("races", "malformed race deletion id skipped")
		}
	}

	if edits, ok := block[changes.RacesEdits].(changes.Structured); ok {
		for key, edit := range edits {
			parsed, err := changes.ParseRaceKey(key)
			if err != nil {
				res.AddWarning("races", "unrecognized race edit key "+key+" skipped")
				continue
			}
			rs.edits[parsed] = editFieldMap(edit)
		}
	}

	return rs
}

// reconcileRaces resolves the race collection changes against persisted
// rows, in fixed order: id-addressed updates, positional updates,
// additions, manual creations, then deletions. A row flagged for
// deletion is never also updated. In create mode only additions and
// manual rows apply.
func (a *Applier) reconcileRaces(ctx context.Context, tx catalog.Repository, editionID int64, rs raceSet, res *proposals.ApplicationResult, createMode bool) error {
	if rs.empty() {
		return nil
	}
	log := logging.Ctx(ctx)

	deleted, removedAdds := a.resolveDeletions(rs, res, createMode)

	// 1. Updates addressed by persisted id.
	if !createMode {
		for _, u := range rs.updates {
			if deleted[u.id] {
				res.AddWarning("races", "race "+strconv.FormatInt(u.id, 10)+" is flagged for deletion, update dropped")
				continue
			}
			if err := a.writeRaceUpdate(ctx, tx, u.id, u.fields, res); err != nil {
				return err
			}
		}

		// 2. Updates addressed by positional key, reviewer wins.
		for _, key := range sortedEditKeys(rs.edits, changes.KeyExisting) {
			fields := rs.edits[key]
			if isDeletionFlag(fields) {
				continue
			}
			id, ok := resolvePositional(rs.updates, key.Index)
			if !ok {
				res.AddWarning("races", "positional race edit "+key.String()+" does not match a proposed update")
				continue
			}
			if deleted[id] {
				res.AddWarning("races", "race "+strconv.FormatInt(id, 10)+" is flagged for deletion, edit dropped")
				continue
			}
			if err := a.writeRaceUpdate(ctx, tx, id, fields, res); err != nil {
				return err
			}
		}
	}

	// 3. Agent-proposed additions, minus reviewer-removed entries.
	for i, entry := range rs.adds {
		if removedAdds[i] || isDeletionFlag(entry) {
			log.Debug().Int("index", i).Msg("race addition removed by reviewer")
			continue
		}
		payload := copyFieldMap(entry)
		if override, ok := rs.edits[changes.RaceKey{Kind: changes.KeyNewProposed, Index: i}]; ok {
			for k, v := range override {
				payload[k] = v
			}
		}
		if err := a.createRaceRow(ctx, tx, editionID, payload, res); err != nil {
			return err
		}
	}

	// 4. Manually added rows, reviewer-only.
	for _, key := range sortedEditKeys(rs.edits, changes.KeyNewManual) {
		fields := rs.edits[key]
		if isDeletionFlag(fields) {
			continue
		}
		if err := a.createRaceRow(ctx, tx, editionID, copyFieldMap(fields), res); err != nil {
			return err
		}
	}

	// 5. Deletions.
	ids := make([]int64, 0, len(deleted))
	for id := range deleted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := tx.DeleteRace(ctx, id); err != nil {
			if errors.IsNotFound(err) {
				res.AddWarning("races", "race "+strconv.FormatInt(id, 10)+" already gone, deletion skipped")
				continue
			}
			return errors.WrapApplication("delete", "race", strconv.FormatInt(id, 10), err)
		}
	}

	return nil
}

// resolveDeletions collects the persisted ids flagged for deletion and
// the add-list indexes the reviewer removed.
func (a *Applier) resolveDeletions(rs raceSet, res *proposals.ApplicationResult, createMode bool) (map[int64]bool, map[int]bool) {
	deleted := make(map[int64]bool, len(rs.deletes))
	removedAdds := make(map[int]bool)

	if !createMode {
		for _, id := range rs.deletes {
			deleted[id] = true
		}
	} else if len(rs.deletes) > 0 || len(rs.updates) > 0 {
		res.AddWarning("races", "race updates and deletions are not applicable while creating an event, skipped")
	}

	for key, fields := range rs.edits {
		if !isDeletionFlag(fields) {
			continue
		}
		switch key.Kind {
		case changes.KeyExisting:
			if createMode {
				continue
			}
			if id, ok := resolvePositional(rs.updates, key.Index); ok {
				deleted[id] = true
			} else {
				res.AddWarning("races", "deletion flag "+key.String()+" does not match a proposed update")
			}
		case changes.KeyNewProposed:
			removedAdds[key.Index] = true
		}
	}

	return deleted, removedAdds
}

// writeRaceUpdate applies a no-op-filtered field update to one race.
func (a *Applier) writeRaceUpdate(ctx context.Context, tx catalog.Repository, id int64, fields map[string]any, res *proposals.ApplicationResult) error {
	if len(fields) == 0 {
		return nil
	}

	race, err := tx.RaceByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			res.AddWarning("races", "race "+strconv.FormatInt(id, 10)+" not found, update skipped")
			return nil
		}
		return errors.WrapApplication("read", "race", strconv.FormatInt(id, 10), err)
	}

	diff := changes.Changed(fields, race.Fields())
	if len(diff) == 0 {
		return nil
	}
	if err := tx.UpdateRace(ctx, id, diff); err != nil {
		return errors.WrapApplication("update", "race", strconv.FormatInt(id, 10), err)
	}
	res.Applied["races["+strconv.FormatInt(id, 10)+"]"] = diff
	return nil
}

// createRaceRow creates one race. New rows must never carry a persisted
// identifier: an id-looking field in the payload is stripped with a
// warning. Newly created races always start inactive, whatever activity
// flag the agent proposed.
func (a *Applier) createRaceRow(ctx context.Context, tx catalog.Repository, editionID int64, payload map[string]any, res *proposals.ApplicationResult) error {
	if _, ok := payload["id"]; ok {
		res.AddWarning("races", "new race payload carried an identifier, stripped")
		delete(payload, "id")
	}

	race := &catalog.Race{
		EditionID:  editionID,
		Name:       str(payload, "name"),
		DistanceKM: f64(payload, "distance_km"),
		StartTime:  timePtr(payload, "start_time"),
		Price:      str(payload, "price"),
		Active:     false,
		CreatedAt:  a.now(),
		UpdatedAt:  a.now(),
	}

	id, err := tx.CreateRace(ctx, race)
	if err != nil {
		return errors.WrapApplication("create", "race", "", err)
	}
	res.Created.RaceIDs = append(res.Created.RaceIDs, id)
	return nil
}

// resolvePositional maps a positional reviewer key onto the persisted
// id of the i-th races-to-update entry. The correspondence is strictly
// positional against the proposal's update array.
func resolvePositional(updates []raceUpdate, index int) (int64, bool) {
	if index < 0 || index >= len(updates) {
		return 0, false
	}
	return updates[index].id, true
}

// sortedEditKeys returns the edit keys of one kind in deterministic
// order (by index, then by timestamp).
func sortedEditKeys(edits map[changes.RaceKey]map[string]any, kind changes.RaceKeyKind) []changes.RaceKey {
	var keys []changes.RaceKey
	for key := range edits {
		if key.Kind == kind {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Index != keys[j].Index {
			return keys[i].Index < keys[j].Index
		}
		return keys[i].Stamp < keys[j].Stamp
	})
	return keys
}

// isDeletionFlag reports whether a reviewer edit marks its row deleted
// or removed rather than carrying field overrides.
func isDeletionFlag(fields map[string]any) bool {
	if v, ok := fields[changes.RaceDeletedField].(bool); ok && v {
		return true
	}
	if v, ok := fields[changes.RaceRemovedField].(bool); ok && v {
		return true
	}
	return false
}

// blockSlice unwraps a Raw-held array member of the race block.
func blockSlice(block changes.Structured, key string) []any {
	raw, ok := block[key].(changes.Raw)
	if !ok {
		return nil
	}
	s, _ := raw.V.([]any)
	return s
}

// editFieldMap extracts a reviewer edit value into a plain field map.
func editFieldMap(edit changes.Value) map[string]any {
	switch e := edit.(type) {
	case changes.Structured:
		out := make(map[string]any, len(e))
		for k, v := range e {
			out[k] = changes.Extract(v)
		}
		return out
	case changes.Raw:
		if m, ok := e.V.(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// coerceID converts a decoded JSON id into an int64.
func coerceID(v any) (int64, bool) {
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

// copyFieldMap shallow-copies a field payload before mutation.
func copyFieldMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == changes.RaceDeletedField || k == changes.RaceRemovedField {
			continue
		}
		out[k] = v
	}
	return out
}
