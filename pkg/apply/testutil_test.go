package apply

import (
	"context"
	"sync"
	"time"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// fakeRepo is an in-memory catalog.Repository for orchestrator tests.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64

	events     map[int64]*catalog.Event
	editions   map[int64]*catalog.Edition
	organizers map[int64]*catalog.Organizer
	races      map[int64]*catalog.Race

	createEventErr error
	createRaceErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:     map[int64]*catalog.Event{},
		editions:   map[int64]*catalog.Edition{},
		organizers: map[int64]*catalog.Organizer{},
		races:      map[int64]*catalog.Race{},
	}
}

func (r *fakeRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) seedEvent(e catalog.Event) *catalog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.id()
	} else if e.ID > r.nextID {
		r.nextID = e.ID
	}
	r.events[e.ID] = &e
	return &e
}

func (r *fakeRepo) seedEdition(e catalog.Edition) *catalog.Edition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.id()
	} else if e.ID > r.nextID {
		r.nextID = e.ID
	}
	r.editions[e.ID] = &e
	return &e
}

func (r *fakeRepo) seedRace(race catalog.Race) *catalog.Race {
	r.mu.Lock()
	defer r.mu.Unlock()
	if race.ID == 0 {
		race.ID = r.id()
	} else if race.ID > r.nextID {
		r.nextID = race.ID
	}
	r.races[race.ID] = &race
	return &race
}

func (r *fakeRepo) CreateEvent(_ context.Context, event *catalog.Event) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createEventErr != nil {
		return 0, r.createEventErr
	}
	event.ID = r.id()
	stored := *event
	r.events[event.ID] = &stored
	return event.ID, nil
}

func (r *fakeRepo) UpdateEvent(_ context.Context, id int64, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return errors.NewNotFoundError("event", "")
	}
	for k, v := range fields {
		switch k {
		case "name":
			e.Name, _ = v.(string)
		case "slug":
			e.Slug, _ = v.(string)
		case "city":
			e.City, _ = v.(string)
		case "country":
			e.Country, _ = v.(string)
		case "website":
			e.Website, _ = v.(string)
		case "latitude":
			if f, ok := v.(float64); ok {
				e.Latitude = &f
			}
		case "longitude":
			if f, ok := v.(float64); ok {
				e.Longitude = &f
			}
		case "status":
			if s, ok := v.(string); ok {
				e.Status = catalog.EventStatus(s)
			}
		case "redirect_id":
			if id, ok := v.(int64); ok {
				e.RedirectID = &id
			}
		}
	}
	return nil
}

func (r *fakeRepo) EventByID(_ context.Context, id int64) (*catalog.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, errors.NewNotFoundError("event", "")
	}
	copied := *e
	return &copied, nil
}

func (r *fakeRepo) TouchEvent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return errors.NewNotFoundError("event", "")
	}
	e.NeedsReindex = true
	return nil
}

func (r *fakeRepo) CreateEdition(_ context.Context, edition *catalog.Edition) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	edition.ID = r.id()
	stored := *edition
	r.editions[edition.ID] = &stored
	return edition.ID, nil
}

func (r *fakeRepo) UpdateEdition(_ context.Context, id int64, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editions[id]
	if !ok {
		return errors.NewNotFoundError("edition", "")
	}
	for k, v := range fields {
		switch k {
		case "year":
			if f, ok := v.(float64); ok {
				e.Year = int(f)
			} else if n, ok := v.(int); ok {
				e.Year = n
			}
		case "region_name":
			e.RegionName, _ = v.(string)
		case "region_code":
			e.RegionCode, _ = v.(string)
		case "website":
			e.Website, _ = v.(string)
		case "confirmed":
			e.Confirmed, _ = v.(bool)
		case "confirmed_at":
			if t, ok := v.(time.Time); ok {
				e.ConfirmedAt = &t
			}
		case "start_date":
			if t, ok := v.(time.Time); ok {
				e.StartDate = &t
			}
		case "end_date":
			if t, ok := v.(time.Time); ok {
				e.EndDate = &t
			}
		}
	}
	return nil
}

func (r *fakeRepo) EditionByID(_ context.Context, id int64) (*catalog.Edition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editions[id]
	if !ok {
		return nil, errors.NewNotFoundError("edition", "")
	}
	copied := *e
	return &copied, nil
}

func (r *fakeRepo) EditionsByEvent(_ context.Context, eventID int64) ([]catalog.Edition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Edition
	for _, e := range r.editions {
		if e.EventID == eventID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpsertOrganizer(_ context.Context, organizer *catalog.Organizer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if organizer.ID == 0 {
		organizer.ID = r.id()
	}
	stored := *organizer
	r.organizers[organizer.ID] = &stored
	return organizer.ID, nil
}

func (r *fakeRepo) OrganizersByEdition(_ context.Context, editionID int64) ([]catalog.Organizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Organizer
	for _, o := range r.organizers {
		if o.EditionID == editionID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateRace(_ context.Context, race *catalog.Race) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createRaceErr != nil {
		return 0, r.createRaceErr
	}
	race.ID = r.id()
	stored := *race
	r.races[race.ID] = &stored
	return race.ID, nil
}

func (r *fakeRepo) UpdateRace(_ context.Context, id int64, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	race, ok := r.races[id]
	if !ok {
		return errors.NewNotFoundError("race", "")
	}
	for k, v := range fields {
		switch k {
		case "name":
			race.Name, _ = v.(string)
		case "distance_km":
			if f, ok := v.(float64); ok {
				race.DistanceKM = f
			}
		case "price":
			race.Price, _ = v.(string)
		case "active":
			race.Active, _ = v.(bool)
		case "start_time":
			if t, ok := v.(time.Time); ok {
				race.StartTime = &t
			}
		}
	}
	return nil
}

func (r *fakeRepo) RaceByID(_ context.Context, id int64) (*catalog.Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	race, ok := r.races[id]
	if !ok || race.Archived {
		return nil, errors.NewNotFoundError("race", "")
	}
	copied := *race
	return &copied, nil
}

func (r *fakeRepo) RacesByEdition(_ context.Context, editionID int64) ([]catalog.Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Race
	for _, race := range r.races {
		if race.EditionID == editionID && !race.Archived {
			out = append(out, *race)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteRace(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	race, ok := r.races[id]
	if !ok {
		return errors.NewNotFoundError("race", "")
	}
	race.Archived = true
	return nil
}

func (r *fakeRepo) Atomic(_ context.Context, fn func(catalog.Repository) error) error {
	return fn(r)
}

// fakeStore is an in-memory audit store.
type fakeStore struct {
	mu        sync.Mutex
	apps      map[string][]proposals.ApplicationResult
	recordErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{apps: map[string][]proposals.ApplicationResult{}}
}

func (s *fakeStore) ProposalByID(_ context.Context, id string) (*proposals.Proposal, error) {
	return nil, errors.NewNotFoundError("proposal", id)
}

func (s *fakeStore) ApplicationsByProposal(_ context.Context, proposalID string) ([]proposals.ApplicationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]proposals.ApplicationResult(nil), s.apps[proposalID]...), nil
}

func (s *fakeStore) RecordApplication(_ context.Context, result *proposals.ApplicationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.apps[result.ProposalID] = append(s.apps[result.ProposalID], *result)
	return nil
}

// fakeGeocoder returns a fixed point or a fixed error.
type fakeGeocoder struct {
	coords  *catalog.Coordinates
	err     error
	queries []string
}

func (g *fakeGeocoder) Lookup(_ context.Context, query string) (*catalog.Coordinates, error) {
	g.queries = append(g.queries, query)
	if g.err != nil {
		return nil, g.err
	}
	return g.coords, nil
}

func int64p(v int64) *int64 { return &v }
