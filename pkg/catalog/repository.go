package catalog

import "context"

// Repository is the abstract data-access boundary for catalog rows.
// All writes performed by the reconciliation engine go through this
// interface; implementations live in internal/postgres.
type Repository interface {
	// Events
	CreateEvent(ctx context.Context, event *Event) (int64, error)
	UpdateEvent(ctx context.Context, id int64, fields map[string]any) error
	EventByID(ctx context.Context, id int64) (*Event, error)

	// TouchEvent bumps the event's change-tracking flag so the external
	// reindex pipeline picks it up.
	TouchEvent(ctx context.Context, id int64) error

	// Editions
	CreateEdition(ctx context.Context, edition *Edition) (int64, error)
	UpdateEdition(ctx context.Context, id int64, fields map[string]any) error
	EditionByID(ctx context.Context, id int64) (*Edition, error)
	EditionsByEvent(ctx context.Context, eventID int64) ([]Edition, error)

	// Organizers
	UpsertOrganizer(ctx context.Context, organizer *Organizer) (int64, error)
	OrganizersByEdition(ctx context.Context, editionID int64) ([]Organizer, error)

	// Races
	CreateRace(ctx context.Context, race *Race) (int64, error)
	UpdateRace(ctx context.Context, id int64, fields map[string]any) error
	RaceByID(ctx context.Context, id int64) (*Race, error)
	RacesByEdition(ctx context.Context, editionID int64) ([]Race, error)

	// DeleteRace soft-deletes a race: the row is archived, never
	// physically removed.
	DeleteRace(ctx context.Context, id int64) error

	// Atomic runs fn within one transaction boundary. The Repository
	// passed to fn routes every call through that transaction. A
	// multi-entity create uses this so a partial failure leaves no
	// orphaned rows.
	Atomic(ctx context.Context, fn func(Repository) error) error
}

// Resolver resolves an optional named connection to a live Repository.
// An empty connection id resolves to the default production connection.
// The engine treats the returned handle as opaque.
type Resolver interface {
	Resolve(ctx context.Context, connID string) (Repository, error)
}

// Geocoder looks up coordinates for a free-text place query. A lookup
// that finds no match returns a not-found error; callers degrade to
// "no coordinates" rather than failing the surrounding apply.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (*Coordinates, error)
}
