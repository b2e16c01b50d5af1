package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
)

// memRepo is a minimal in-memory Repository for merge tests. Methods
// the merge path never touches panic so a regression is loud.
type memRepo struct {
	nextID   int64
	events   map[int64]*catalog.Event
	editions map[int64]*catalog.Edition
	races    map[int64]*catalog.Race
}

func newMemRepo() *memRepo {
	return &memRepo{
		events:   map[int64]*catalog.Event{},
		editions: map[int64]*catalog.Edition{},
		races:    map[int64]*catalog.Race{},
	}
}

func (r *memRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) seedEvent(e catalog.Event) *catalog.Event {
	if e.ID > r.nextID {
		r.nextID = e.ID
	}
	r.events[e.ID] = &e
	return &e
}

func (r *memRepo) seedEdition(e catalog.Edition) *catalog.Edition {
	if e.ID == 0 {
		e.ID = r.id()
	} else if e.ID > r.nextID {
		r.nextID = e.ID
	}
	r.editions[e.ID] = &e
	return &e
}

func (r *memRepo) seedRace(race catalog.Race) *catalog.Race {
	if race.ID == 0 {
		race.ID = r.id()
	} else if race.ID > r.nextID {
		r.nextID = race.ID
	}
	r.races[race.ID] = &race
	return &race
}

func (r *memRepo) CreateEvent(context.Context, *catalog.Event) (int64, error) {
	panic("not used by merge")
}

func (r *memRepo) UpdateEvent(_ context.Context, id int64, fields map[string]any) error {
	e, ok := r.events[id]
	if !ok {
		return errors.NewNotFoundError("event", "")
	}
	for k, v := range fields {
		switch k {
		case "name":
			e.Name, _ = v.(string)
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

func (r *memRepo) EventByID(_ context.Context, id int64) (*catalog.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, errors.NewNotFoundError("event", "")
	}
	copied := *e
	return &copied, nil
}

func (r *memRepo) TouchEvent(_ context.Context, id int64) error {
	e, ok := r.events[id]
	if !ok {
		return errors.NewNotFoundError("event", "")
	}
	e.NeedsReindex = true
	return nil
}

func (r *memRepo) CreateEdition(_ context.Context, edition *catalog.Edition) (int64, error) {
	edition.ID = r.id()
	stored := *edition
	r.editions[edition.ID] = &stored
	return edition.ID, nil
}

func (r *memRepo) UpdateEdition(context.Context, int64, map[string]any) error {
	panic("not used by merge")
}

func (r *memRepo) EditionByID(context.Context, int64) (*catalog.Edition, error) {
	panic("not used by merge")
}

func (r *memRepo) EditionsByEvent(_ context.Context, eventID int64) ([]catalog.Edition, error) {
	var out []catalog.Edition
	for _, e := range r.editions {
		if e.EventID == eventID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memRepo) UpsertOrganizer(context.Context, *catalog.Organizer) (int64, error) {
	panic("not used by merge")
}

func (r *memRepo) OrganizersByEdition(context.Context, int64) ([]catalog.Organizer, error) {
	panic("not used by merge")
}

func (r *memRepo) CreateRace(_ context.Context, race *catalog.Race) (int64, error) {
	race.ID = r.id()
	stored := *race
	r.races[race.ID] = &stored
	return race.ID, nil
}

func (r *memRepo) UpdateRace(context.Context, int64, map[string]any) error {
	panic("not used by merge")
}

func (r *memRepo) RaceByID(context.Context, int64) (*catalog.Race, error) {
	panic("not used by merge")
}

func (r *memRepo) RacesByEdition(_ context.Context, editionID int64) ([]catalog.Race, error) {
	var out []catalog.Race
	for _, race := range r.races {
		if race.EditionID == editionID {
			out = append(out, *race)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteRace(context.Context, int64) error {
	panic("not used by merge")
}

func (r *memRepo) Atomic(_ context.Context, fn func(catalog.Repository) error) error {
	return fn(r)
}

func TestMergeHappyPath(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Name: "Berlin Marathon", Status: catalog.EventStatusActive})
	repo.seedEvent(catalog.Event{ID: 200, Name: "BERLIN-MARATHON e.V.", Status: catalog.EventStatusActive})

	res, err := New(repo).Merge(context.Background(), 100, 200, Options{})
	require.NoError(t, err)

	assert.True(t, res.Redirected)
	assert.True(t, res.Deleted)

	keep := repo.events[100]
	require.NotNil(t, keep.RedirectID)
	assert.Equal(t, int64(200), *keep.RedirectID)
	assert.True(t, keep.NeedsReindex)

	dup := repo.events[200]
	assert.Equal(t, catalog.EventStatusDeleted, dup.Status)
	assert.True(t, dup.NeedsReindex)
}

func TestMergeMissingEvent(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Status: catalog.EventStatusActive})

	_, err := New(repo).Merge(context.Background(), 100, 200, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "200")

	_, err = New(repo).Merge(context.Background(), 999, 100, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "999")
}

func TestMergeRedirectConflict(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 50, Name: "Live Target", Status: catalog.EventStatusActive})
	repo.seedEvent(catalog.Event{ID: 100, Name: "Keep", Status: catalog.EventStatusActive, RedirectID: int64p(50)})
	repo.seedEvent(catalog.Event{ID: 200, Name: "Dup", Status: catalog.EventStatusActive})

	_, err := New(repo).Merge(context.Background(), 100, 200, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), "50")
	assert.Contains(t, err.Error(), "100")

	// Force overwrites the live pointer.
	res, err := New(repo).Merge(context.Background(), 100, 200, Options{Force: true})
	require.NoError(t, err)
	assert.True(t, res.Redirected)
	assert.Equal(t, int64(200), *repo.events[100].RedirectID)
}

func TestMergeOrphanRedirectOverwritten(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Name: "Keep", Status: catalog.EventStatusActive, RedirectID: int64p(999)})
	repo.seedEvent(catalog.Event{ID: 200, Name: "Dup", Status: catalog.EventStatusActive})

	res, err := New(repo).Merge(context.Background(), 100, 200, Options{})
	require.NoError(t, err)
	assert.True(t, res.Redirected)
	assert.Equal(t, int64(200), *repo.events[100].RedirectID)
}

func TestMergeRename(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Name: "Old Name", Status: catalog.EventStatusActive})
	repo.seedEvent(catalog.Event{ID: 200, Name: "Dup", Status: catalog.EventStatusActive})

	res, err := New(repo).Merge(context.Background(), 100, 200, Options{Rename: "  New Name  "})
	require.NoError(t, err)
	assert.Equal(t, "Old Name", res.RenamedFrom)
	assert.Equal(t, "New Name", res.RenamedTo)
	assert.Equal(t, "New Name", repo.events[100].Name)
}

func TestMergeWhitespaceRenameIsNoOp(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Name: "Keep", Status: catalog.EventStatusActive})
	repo.seedEvent(catalog.Event{ID: 200, Name: "Dup", Status: catalog.EventStatusActive})

	res, err := New(repo).Merge(context.Background(), 100, 200, Options{Rename: "   "})
	require.NoError(t, err)
	assert.Empty(t, res.RenamedTo)
	assert.Equal(t, "Keep", repo.events[100].Name)
}

func TestMergeCopiesMissingEditions(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Name: "Keep", Status: catalog.EventStatusActive})
	repo.seedEvent(catalog.Event{ID: 200, Name: "Dup", Status: catalog.EventStatusActive})

	repo.seedEdition(catalog.Edition{EventID: 100, Year: 2025})
	shared := repo.seedEdition(catalog.Edition{EventID: 200, Year: 2025})
	missing := repo.seedEdition(catalog.Edition{EventID: 200, Year: 2026, RegionName: "Berlin"})
	repo.seedRace(catalog.Race{EditionID: missing.ID, Name: "10K", DistanceKM: 10})
	repo.seedRace(catalog.Race{EditionID: shared.ID, Name: "Half"})

	res, err := New(repo).Merge(context.Background(), 100, 200, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{2026}, res.CopiedEditions)

	editions, err := repo.EditionsByEvent(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, editions, 2)

	var copied *catalog.Edition
	for i := range editions {
		if editions[i].Year == 2026 {
			copied = &editions[i]
		}
	}
	require.NotNil(t, copied)
	assert.Equal(t, "Berlin", copied.RegionName)
	assert.NotEqual(t, missing.ID, copied.ID)

	races, err := repo.RacesByEdition(context.Background(), copied.ID)
	require.NoError(t, err)
	require.Len(t, races, 1)
	assert.Equal(t, "10K", races[0].Name)
}

func TestMergeSkipEditionCopy(t *testing.T) {
	repo := newMemRepo()
	repo.seedEvent(catalog.Event{ID: 100, Status: catalog.EventStatusActive})
	repo.seedEvent(catalog.Event{ID: 200, Status: catalog.EventStatusActive})
	repo.seedEdition(catalog.Edition{EventID: 200, Year: 2026})

	res, err := New(repo).Merge(context.Background(), 100, 200, Options{SkipEditionCopy: true})
	require.NoError(t, err)
	assert.Empty(t, res.CopiedEditions)

	editions, err := repo.EditionsByEvent(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, editions)
}

func int64p(v int64) *int64 { return &v }
