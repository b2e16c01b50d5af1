// Package catalog defines the canonical catalog rows (events, editions,
// organizers, races) and the collaborator interfaces the reconciliation
// engine drives: the Repository data-access boundary, the connection
// Resolver, the Audit store and the Geocoder.
//
// The engine never holds a long-lived reference to a row beyond one
// apply invocation; rows are owned and mutated exclusively through the
// Repository.
package catalog

import "time"

// EventStatus describes the lifecycle state of an event row.
type EventStatus string

const (
	// EventStatusActive is the normal, listed state.
	EventStatusActive EventStatus = "active"
	// EventStatusDeleted marks an event soft-deleted, e.g. after a
	// merge/dedup collapsed it into another event.
	EventStatusDeleted EventStatus = "deleted"
)

// Coordinates is a geographic point returned by the Geocoder.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event is a top-level catalog entry: one real-world recurring race
// event such as a city marathon.
type Event struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Slug      string      `json:"slug"`
	City      string      `json:"city"`
	Country   string      `json:"country"`
	Website   string      `json:"website,omitempty"`
	Latitude  *float64    `json:"latitude,omitempty"`
	Longitude *float64    `json:"longitude,omitempty"`
	Status    EventStatus `json:"status"`

	// RedirectID points at the event this one was merged into. A
	// non-nil pointer marks this row as a duplicate of another event.
	RedirectID *int64 `json:"redirect_id,omitempty"`

	// NeedsReindex is a change-tracking flag consumed by the external
	// search reindexing pipeline.
	NeedsReindex bool `json:"needs_reindex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields returns the event's mutable columns as a field map, the shape
// the no-op change filter compares proposed values against.
func (e *Event) Fields() map[string]any {
	fields := map[string]any{
		"name":    e.Name,
		"city":    e.City,
		"country": e.Country,
		"website": e.Website,
	}
	if e.Latitude != nil {
		fields["latitude"] = *e.Latitude
	}
	if e.Longitude != nil {
		fields["longitude"] = *e.Longitude
	}
	return fields
}

// Edition is one year's running of an event.
type Edition struct {
	ID      int64 `json:"id"`
	EventID int64 `json:"event_id"`
	Year    int   `json:"year"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	RegionName string `json:"region_name,omitempty"`
	RegionCode string `json:"region_code,omitempty"`
	Website    string `json:"website,omitempty"`

	// Confirmed is set whenever a reviewer-approved proposal touches
	// the edition, regardless of which fields changed.
	Confirmed   bool       `json:"confirmed"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields returns the edition's mutable columns as a field map.
func (e *Edition) Fields() map[string]any {
	fields := map[string]any{
		"year":        e.Year,
		"region_name": e.RegionName,
		"region_code": e.RegionCode,
		"website":     e.Website,
	}
	if e.StartDate != nil {
		fields["start_date"] = *e.StartDate
	}
	if e.EndDate != nil {
		fields["end_date"] = *e.EndDate
	}
	return fields
}

// Organizer is the contact block attached to an edition.
type Organizer struct {
	ID        int64  `json:"id"`
	EditionID int64  `json:"edition_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
}

// Race is a single distance or course within an edition.
type Race struct {
	ID        int64 `json:"id"`
	EditionID int64 `json:"edition_id"`

	Name       string     `json:"name"`
	DistanceKM float64    `json:"distance_km,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	Price      string     `json:"price,omitempty"`

	// Active controls public listing. Newly created races always start
	// inactive until a reviewer flips them on.
	Active bool `json:"active"`

	// Archived is the soft-delete marker; archived rows are never
	// physically removed.
	Archived bool `json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields returns the race's mutable columns as a field map.
func (r *Race) Fields() map[string]any {
	fields := map[string]any{
		"name":        r.Name,
		"distance_km": r.DistanceKM,
		"price":       r.Price,
		"active":      r.Active,
	}
	if r.StartTime != nil {
		fields["start_time"] = *r.StartTime
	}
	return fields
}
