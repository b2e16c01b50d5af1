package apply

import (
	"context"
	"strconv"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// createEvent is the creation path: event row, slug, optional geocode
// enrichment, then editions with their organizer and races. The whole
// path runs inside one transaction boundary so a failure partway
// through leaves no orphaned rows. In chunked mode only the requested
// block's slice of the work runs, reusing parents created earlier.
func (a *Applier) createEvent(ctx context.Context, p *proposals.Proposal, st *state, res *proposals.ApplicationResult) {
	err := a.repo.Atomic(ctx, func(tx catalog.Repository) error {
		switch st.chunk {
		case "":
			eventID, err := a.createEventRow(ctx, tx, st, res)
			if err != nil {
				return err
			}
			return a.createEditions(ctx, tx, eventID, st, res)

		case blocks.BlockEvent:
			_, err := a.createEventRow(ctx, tx, st, res)
			return err

		case blocks.BlockEdition:
			eventID, err := targetEventID(p, st)
			if err != nil {
				return err
			}
			return a.createEditions(ctx, tx, eventID, st, res)

		case blocks.BlockOrganizer:
			editionID, err := targetEditionID(p, st)
			if err != nil {
				return err
			}
			return a.upsertOrganizerBlock(ctx, tx, editionID, extractBlock(st.merged, blocks.BlockOrganizer), res)

		case blocks.BlockRaces:
			editionID, err := targetEditionID(p, st)
			if err != nil {
				return err
			}
			rs := parseRaceSet(st.merged[changes.FieldRaces], res)
			return a.reconcileRaces(ctx, tx, editionID, rs, res, true)

		default:
			return errors.NewValidationError("block", st.chunk, "unknown block")
		}
	})
	if err != nil {
		res.Fail("", err)
	}
}

// createEventRow creates the event, generates its slug from name and
// the freshly assigned id, and enriches coordinates by a best-effort
// geocode lookup when the proposal carries none.
func (a *Applier) createEventRow(ctx context.Context, tx catalog.Repository, st *state, res *proposals.ApplicationResult) (int64, error) {
	fields := extractBlock(st.merged, blocks.BlockEvent)

	name := str(fields, "name")
	if name == "" {
		return 0, errors.NewValidationError("name", nil, "a new event requires a name")
	}

	event := &catalog.Event{
		Name:      name,
		City:      str(fields, "city"),
		Country:   str(fields, "country"),
		Website:   str(fields, "website"),
		Latitude:  f64ptr(fields, "latitude"),
		Longitude: f64ptr(fields, "longitude"),
		Status:    catalog.EventStatusActive,
		CreatedAt: a.now(),
		UpdatedAt: a.now(),
	}

	id, err := tx.CreateEvent(ctx, event)
	if err != nil {
		return 0, errors.WrapApplication("create", "event", "", err)
	}
	res.Created.EventID = &id
	for k, v := range fields {
		res.Applied[k] = v
	}

	// The slug embeds the assigned id, so it is written after creation.
	slug := makeSlug(name, id)
	if err := tx.UpdateEvent(ctx, id, map[string]any{"slug": slug}); err != nil {
		return 0, errors.WrapApplication("update", "event", strconv.FormatInt(id, 10), err)
	}
	res.Applied["slug"] = slug

	a.geocodeEvent(ctx, tx, id, event, res)

	return id, nil
}

// geocodeEvent fills missing coordinates from the geocoding service.
// Any failure, including "no match", degrades to a warning.
func (a *Applier) geocodeEvent(ctx context.Context, tx catalog.Repository, id int64, event *catalog.Event, res *proposals.ApplicationResult) {
	if a.geo == nil || event.Latitude != nil || event.Longitude != nil || event.City == "" {
		return
	}

	query := event.City
	if event.Country != "" {
		query += ", " + event.Country
	}

	coords, err := a.geo.Lookup(ctx, query)
	if err != nil {
		res.AddWarning("geocode", "coordinate lookup failed for "+query+": "+err.Error())
		return
	}

	fields := map[string]any{
		"latitude":  coords.Latitude,
		"longitude": coords.Longitude,
	}
	if err := tx.UpdateEvent(ctx, id, fields); err != nil {
		res.AddWarning("geocode", "could not persist coordinates: "+err.Error())
		return
	}
	res.Applied["latitude"] = coords.Latitude
	res.Applied["longitude"] = coords.Longitude
}

// createEditions creates the editions carried by a creation proposal.
// The proposal either carries an explicit editions array, or a single
// edition assembled from its edition-scoped fields.
func (a *Applier) createEditions(ctx context.Context, tx catalog.Repository, eventID int64, st *state, res *proposals.ApplicationResult) error {
	var payloads []map[string]any
	if raw, ok := st.merged["editions"].(changes.Raw); ok {
		if list, ok := raw.V.([]any); ok {
			for _, entry := range list {
				if m, ok := entry.(map[string]any); ok {
					payloads = append(payloads, m)
				}
			}
		}
	}

	single := extractBlock(st.merged, blocks.BlockEdition)
	delete(single, "editions")
	organizer := extractBlock(st.merged, blocks.BlockOrganizer)
	rs := parseRaceSet(st.merged[changes.FieldRaces], res)

	if len(payloads) == 0 {
		if len(single) == 0 && len(organizer) == 0 && rs.empty() {
			return nil
		}
		payloads = []map[string]any{single}
	}

	for i, payload := range payloads {
		edition := &catalog.Edition{
			EventID:    eventID,
			Year:       intVal(payload, "year"),
			StartDate:  timePtr(payload, "start_date"),
			EndDate:    timePtr(payload, "end_date"),
			RegionName: str(payload, "region_name"),
			RegionCode: str(payload, "region_code"),
			Website:    str(payload, "website"),
			CreatedAt:  a.now(),
			UpdatedAt:  a.now(),
		}
		if edition.RegionCode == "" && edition.RegionName != "" {
			edition.RegionCode = regionCode(edition.RegionName)
		}

		editionID, err := tx.CreateEdition(ctx, edition)
		if err != nil {
			return errors.WrapApplication("create", "edition", "", err)
		}
		if res.Created.EditionID == nil {
			res.Created.EditionID = &editionID
		}
		for k, v := range payload {
			res.Applied[k] = v
		}

		// Organizer and races attach to the first (primary) edition.
		if i > 0 {
			continue
		}
		if err := a.upsertOrganizerBlock(ctx, tx, editionID, organizer, res); err != nil {
			return err
		}
		if err := a.reconcileRaces(ctx, tx, editionID, rs, res, true); err != nil {
			return err
		}
	}

	return nil
}

// upsertOrganizerBlock writes the organizer contact block when the
// change set carries any organizer fields.
func (a *Applier) upsertOrganizerBlock(ctx context.Context, tx catalog.Repository, editionID int64, fields map[string]any, res *proposals.ApplicationResult) error {
	if len(fields) == 0 {
		return nil
	}

	organizer := &catalog.Organizer{
		EditionID: editionID,
		Name:      str(fields, "organizer_name"),
		Email:     str(fields, "organizer_email"),
		Phone:     str(fields, "organizer_phone"),
		Website:   str(fields, "organizer_website"),
	}

	// Merge onto an existing organizer row so a partial override does
	// not blank the remaining contact fields.
	existing, err := tx.OrganizersByEdition(ctx, editionID)
	if err != nil {
		return errors.WrapApplication("read", "organizer", strconv.FormatInt(editionID, 10), err)
	}
	if len(existing) > 0 {
		current := existing[0]
		organizer.ID = current.ID
		if organizer.Name == "" {
			organizer.Name = current.Name
		}
		if organizer.Email == "" {
			organizer.Email = current.Email
		}
		if organizer.Phone == "" {
			organizer.Phone = current.Phone
		}
		if organizer.Website == "" {
			organizer.Website = current.Website
		}
	}

	if _, err := tx.UpsertOrganizer(ctx, organizer); err != nil {
		return errors.WrapApplication("upsert", "organizer", strconv.FormatInt(editionID, 10), err)
	}
	for k, v := range fields {
		res.Applied[k] = v
	}

	logging.Ctx(ctx).Debug().Int64("edition_id", editionID).Msg("organizer block written")
	return nil
}

// targetEventID resolves the event a chunked call attaches to.
func targetEventID(p *proposals.Proposal, st *state) (int64, error) {
	if p.EventID != nil {
		return *p.EventID, nil
	}
	if st.reuse.EventID != nil {
		return *st.reuse.EventID, nil
	}
	return 0, errors.NewDependencyError(string(st.chunk), string(blocks.BlockEvent))
}

// targetEditionID resolves the edition a chunked call attaches to.
func targetEditionID(p *proposals.Proposal, st *state) (int64, error) {
	if p.EditionID != nil {
		return *p.EditionID, nil
	}
	if st.reuse.EditionID != nil {
		return *st.reuse.EditionID, nil
	}
	return 0, errors.NewDependencyError(string(st.chunk), string(blocks.BlockEdition))
}
