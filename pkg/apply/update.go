package apply

import (
	"context"
	"strconv"
	"strings"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// updateEvent applies an event-only update: the payload is built from
// the merged changes, no-op suppressed against the stored row, written,
// and the row is touched for the reindex pipeline.
func (a *Applier) updateEvent(ctx context.Context, p *proposals.Proposal, st *state, res *proposals.ApplicationResult) {
	id := *p.EventID

	event, err := a.repo.EventByID(ctx, id)
	if err != nil {
		res.Fail("event_id", errors.NewNotFoundError("event", strconv.FormatInt(id, 10)))
		return
	}

	proposed := extractBlock(st.merged, blocks.BlockEvent)
	diff := changes.Changed(proposed, event.Fields())
	markFiltered(proposed, diff, res)

	if len(diff) == 0 {
		logging.Ctx(ctx).Debug().Int64("event_id", id).Msg("all proposed event changes are no-ops")
		return
	}

	if err := a.repo.UpdateEvent(ctx, id, diff); err != nil {
		res.Fail("", errors.WrapApplication("update", "event", strconv.FormatInt(id, 10), err))
		return
	}
	if err := a.repo.TouchEvent(ctx, id); err != nil {
		res.AddWarning("", "event touch failed: "+err.Error())
	}
	for k, v := range diff {
		res.Applied[k] = v
	}
}

// updateRace applies a single-race update and touches the owning event.
func (a *Applier) updateRace(ctx context.Context, p *proposals.Proposal, st *state, res *proposals.ApplicationResult) {
	id := *p.RaceID

	race, err := a.repo.RaceByID(ctx, id)
	if err != nil {
		res.Fail("race_id", errors.NewNotFoundError("race", strconv.FormatInt(id, 10)))
		return
	}

	proposed := changes.ExtractAll(st.merged)
	delete(proposed, changes.FieldRaces)
	diff := changes.Changed(proposed, race.Fields())
	markFiltered(proposed, diff, res)

	if len(diff) > 0 {
		if err := a.repo.UpdateRace(ctx, id, diff); err != nil {
			res.Fail("", errors.WrapApplication("update", "race", strconv.FormatInt(id, 10), err))
			return
		}
		for k, v := range diff {
			res.Applied[k] = v
		}
	}

	a.touchOwningEvent(ctx, race.EditionID, res)
}

// updateEdition is the richest path: it splits the merged changes into
// edition-scoped and event-scoped sets, writes the no-op-filtered diff
// of each against freshly fetched rows, derives the region code when
// the region name changes without an explicit code, conditionally
// writes the organizer block, touches the event, reconciles the race
// collection, and always confirms the edition.
func (a *Applier) updateEdition(ctx context.Context, p *proposals.Proposal, st *state, res *proposals.ApplicationResult) {
	editionID := *p.EditionID

	edition, err := a.repo.EditionByID(ctx, editionID)
	if err != nil {
		res.Fail("edition_id", errors.NewNotFoundError("edition", strconv.FormatInt(editionID, 10)))
		return
	}
	event, err := a.repo.EventByID(ctx, edition.EventID)
	if err != nil {
		res.Fail("event_id", errors.NewNotFoundError("event", strconv.FormatInt(edition.EventID, 10)))
		return
	}

	editionProposed := extractBlock(st.merged, blocks.BlockEdition)
	eventProposed := extractBlock(st.merged, blocks.BlockEvent)

	// A region name change without an explicit code override derives
	// the denormalized code from the new name. A proposed name equal to
	// the stored one derives nothing: a curated code must survive no-op
	// name proposals.
	if name, ok := editionProposed["region_name"].(string); ok && name != "" {
		_, overridden := st.merged["region_code"]
		renamed := len(changes.Changed(map[string]any{"region_name": name}, edition.Fields())) > 0
		if !overridden && renamed {
			editionProposed["region_code"] = regionCode(name)
		}
	}

	editionDiff := changes.Changed(editionProposed, edition.Fields())
	eventDiff := changes.Changed(eventProposed, event.Fields())
	markFiltered(editionProposed, editionDiff, res)
	markFiltered(eventProposed, eventDiff, res)

	// The confirmation transition happens on every edition apply,
	// regardless of which fields changed.
	editionDiff["confirmed"] = true
	editionDiff["confirmed_at"] = a.now()

	if err := a.repo.UpdateEdition(ctx, editionID, editionDiff); err != nil {
		res.Fail("", errors.WrapApplication("update", "edition", strconv.FormatInt(editionID, 10), err))
		return
	}
	for k, v := range editionDiff {
		res.Applied[k] = v
	}

	if len(eventDiff) > 0 {
		if err := a.repo.UpdateEvent(ctx, event.ID, eventDiff); err != nil {
			res.Fail("", errors.WrapApplication("update", "event", strconv.FormatInt(event.ID, 10), err))
			return
		}
		for k, v := range eventDiff {
			res.Applied[k] = v
		}
	}

	organizer := extractBlock(st.merged, blocks.BlockOrganizer)
	if err := a.upsertOrganizerBlock(ctx, a.repo, editionID, organizer, res); err != nil {
		res.Fail("", err)
		return
	}

	if err := a.repo.TouchEvent(ctx, event.ID); err != nil {
		res.AddWarning("", "event touch failed: "+err.Error())
	}

	rs := parseRaceSet(st.merged[changes.FieldRaces], res)
	if err := a.reconcileRaces(ctx, a.repo, editionID, rs, res, false); err != nil {
		res.Fail("", err)
	}
}

// touchOwningEvent walks race -> edition -> event and bumps the
// change-tracking flag. Failures degrade to warnings.
func (a *Applier) touchOwningEvent(ctx context.Context, editionID int64, res *proposals.ApplicationResult) {
	edition, err := a.repo.EditionByID(ctx, editionID)
	if err != nil {
		res.AddWarning("", "owning edition lookup failed: "+err.Error())
		return
	}
	if err := a.repo.TouchEvent(ctx, edition.EventID); err != nil {
		res.AddWarning("", "event touch failed: "+err.Error())
	}
}

// markFiltered records proposed fields dropped by no-op suppression.
func markFiltered(proposed, kept map[string]any, res *proposals.ApplicationResult) {
	for field, value := range proposed {
		if _, ok := kept[field]; !ok {
			res.Filtered[field] = value
		}
	}
}

// regionCodes maps common region names to their denormalized codes.
var regionCodes = map[string]string{
	"île-de-france":        "IDF",
	"provence-alpes-côte d'azur": "PAC",
	"auvergne-rhône-alpes": "ARA",
	"bavaria":              "BY",
	"berlin":               "BE",
	"catalonia":            "CT",
	"tyrol":                "T",
	"valais":               "VS",
	"zurich":               "ZH",
}

// regionCode derives a denormalized region code from a region name,
// falling back to the first three letters uppercased.
func regionCode(name string) string {
	if code, ok := regionCodes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return code
	}

	var letters []rune
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
			if len(letters) == 3 {
				break
			}
		}
	}
	return string(letters)
}
