// Package dedup collapses two catalog events that represent the same
// real-world event into one: the kept event gains a redirect pointer to
// the duplicate, the duplicate is soft-deleted, and editions present
// only on the duplicate are copied over.
package dedup

import (
	"context"
	"strconv"
	"strings"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
)

// Options controls a single Merge call.
type Options struct {
	// Force overwrites an existing redirect pointer even when it still
	// targets a live event.
	Force bool

	// Rename optionally renames the kept event. Surrounding whitespace
	// is trimmed; a whitespace-only rename is a no-op.
	Rename string

	// SkipEditionCopy disables copying editions present only on the
	// duplicate. The zero value copies, matching the default behavior.
	SkipEditionCopy bool
}

// Result reports the changes one merge applied.
type Result struct {
	KeepID int64 `json:"keep_id"`
	DupID  int64 `json:"dup_id"`

	Redirected  bool   `json:"redirected"`
	RenamedFrom string `json:"renamed_from,omitempty"`
	RenamedTo   string `json:"renamed_to,omitempty"`
	Deleted     bool   `json:"deleted"`

	// CopiedEditions lists the years copied from the duplicate.
	CopiedEditions []int `json:"copied_editions,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Merger performs event merges against one catalog connection.
type Merger struct {
	repo catalog.Repository
}

// New creates a Merger bound to a repository.
func New(repo catalog.Repository) *Merger {
	return &Merger{repo: repo}
}

// Merge collapses dupID into keepID. Both events must exist. An
// existing redirect pointer on the kept event that still targets a live
// event is a conflict unless opts.Force is set; a pointer to a vanished
// event is an orphan and is silently overwritten.
func (m *Merger) Merge(ctx context.Context, keepID, dupID int64, opts Options) (*Result, error) {
	log := logging.Ctx(ctx).With().Int64("keep_id", keepID).Int64("dup_id", dupID).Logger()

	keep, err := m.repo.EventByID(ctx, keepID)
	if err != nil {
		return nil, errors.NewNotFoundError("event", strconv.FormatInt(keepID, 10))
	}
	_, err = m.repo.EventByID(ctx, dupID)
	if err != nil {
		return nil, errors.NewNotFoundError("event", strconv.FormatInt(dupID, 10))
	}

	if err := m.checkRedirect(ctx, keep, opts); err != nil {
		return nil, err
	}

	res := &Result{KeepID: keepID, DupID: dupID}

	if err := m.repo.UpdateEvent(ctx, keepID, map[string]any{"redirect_id": dupID}); err != nil {
		return nil, errors.WrapApplication("update", "event", strconv.FormatInt(keepID, 10), err)
	}
	res.Redirected = true
	if err := m.repo.TouchEvent(ctx, keepID); err != nil {
		res.Warnings = append(res.Warnings, "reindex flag on kept event not set: "+err.Error())
	}

	if name := strings.TrimSpace(opts.Rename); name != "" && name != keep.Name {
		if err := m.repo.UpdateEvent(ctx, keepID, map[string]any{"name": name}); err != nil {
			return nil, errors.WrapApplication("update", "event", strconv.FormatInt(keepID, 10), err)
		}
		res.RenamedFrom = keep.Name
		res.RenamedTo = name
	}

	if err := m.repo.UpdateEvent(ctx, dupID, map[string]any{"status": string(catalog.EventStatusDeleted)}); err != nil {
		return nil, errors.WrapApplication("update", "event", strconv.FormatInt(dupID, 10), err)
	}
	res.Deleted = true
	if err := m.repo.TouchEvent(ctx, dupID); err != nil {
		res.Warnings = append(res.Warnings, "deindex flag on duplicate not set: "+err.Error())
	}

	if !opts.SkipEditionCopy {
		m.copyMissingEditions(ctx, keepID, dupID, res)
	}

	log.Info().
		Bool("renamed", res.RenamedTo != "").
		Ints("copied_editions", res.CopiedEditions).
		Msg("events merged")
	return res, nil
}

// checkRedirect validates the kept event's existing redirect pointer.
func (m *Merger) checkRedirect(ctx context.Context, keep *catalog.Event, opts Options) error {
	if keep.RedirectID == nil || opts.Force {
		return nil
	}

	target, err := m.repo.EventByID(ctx, *keep.RedirectID)
	if err != nil {
		if errors.IsNotFound(err) {
			// Orphan pointer, harmless to overwrite.
			logging.Ctx(ctx).Debug().
				Int64("redirect_id", *keep.RedirectID).
				Msg("overwriting orphan redirect pointer")
			return nil
		}
		return errors.WrapApplication("read", "event", strconv.FormatInt(*keep.RedirectID, 10), err)
	}

	return &errors.ConflictError{
		Resource:  "event",
		ID:        strconv.FormatInt(keep.ID, 10),
		Conflicts: strconv.FormatInt(target.ID, 10),
		Message:   "redirect pointer already targets a live event; pass force to overwrite",
	}
}

// copyMissingEditions deep-copies every edition year present on the
// duplicate but absent on the kept event, races included. A failing
// edition is logged and skipped; the merge itself never fails here.
func (m *Merger) copyMissingEditions(ctx context.Context, keepID, dupID int64, res *Result) {
	log := logging.Ctx(ctx)

	keepEditions, err := m.repo.EditionsByEvent(ctx, keepID)
	if err != nil {
		res.Warnings = append(res.Warnings, "editions of kept event unavailable, copy skipped: "+err.Error())
		return
	}
	dupEditions, err := m.repo.EditionsByEvent(ctx, dupID)
	if err != nil {
		res.Warnings = append(res.Warnings, "editions of duplicate unavailable, copy skipped: "+err.Error())
		return
	}

	have := make(map[int]bool, len(keepEditions))
	for _, e := range keepEditions {
		have[e.Year] = true
	}

	for _, src := range dupEditions {
		if have[src.Year] {
			continue
		}
		if err := m.copyEdition(ctx, keepID, src); err != nil {
			log.Warn().Err(err).Int("year", src.Year).Msg("edition copy failed, skipped")
			res.Warnings = append(res.Warnings, "edition "+strconv.Itoa(src.Year)+" not copied: "+err.Error())
			continue
		}
		res.CopiedEditions = append(res.CopiedEditions, src.Year)
	}
}

// copyEdition copies one edition with its races onto the kept event,
// inside one transaction boundary.
func (m *Merger) copyEdition(ctx context.Context, keepID int64, src catalog.Edition) error {
	return m.repo.Atomic(ctx, func(tx catalog.Repository) error {
		edition := src
		edition.ID = 0
		edition.EventID = keepID

		editionID, err := tx.CreateEdition(ctx, &edition)
		if err != nil {
			return err
		}

		races, err := tx.RacesByEdition(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, r := range races {
			race := r
			race.ID = 0
			race.EditionID = editionID
			if _, err := tx.CreateRace(ctx, &race); err != nil {
				return err
			}
		}
		return nil
	})
}
