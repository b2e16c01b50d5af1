package raceatlas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// stubRepo satisfies catalog.Repository without backing state; any
// actual call panics through the embedded nil interface.
type stubRepo struct {
	catalog.Repository
}

// stubStore serves one fixed proposal and swallows recordings.
type stubStore struct {
	p *proposals.Proposal
}

func (s stubStore) ProposalByID(_ context.Context, id string) (*proposals.Proposal, error) {
	if s.p != nil && s.p.ID == id {
		return s.p, nil
	}
	return nil, errors.NewNotFoundError("proposal", id)
}

func (s stubStore) ApplicationsByProposal(context.Context, string) ([]proposals.ApplicationResult, error) {
	return nil, nil
}

func (s stubStore) RecordApplication(context.Context, *proposals.ApplicationResult) error {
	return nil
}

func TestNewRequiresDatabaseOrRepository(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestApplyResolvesDefaultConnection(t *testing.T) {
	p := &proposals.Proposal{ID: "p-1", Kind: proposals.KindUpdateEvent, Status: proposals.StatusPending}
	eng, err := New(WithRepository(stubRepo{}), WithStore(stubStore{p: p}))
	require.NoError(t, err)

	// The pending status fails the precheck, proving the empty
	// connection id resolved through to the orchestrator.
	res, err := eng.Apply(context.Background(), "p-1", ApplyOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "status", res.Errors[0].Field)
}

func TestApplyRejectsUnknownConnection(t *testing.T) {
	p := &proposals.Proposal{ID: "p-1", Kind: proposals.KindUpdateEvent, Status: proposals.StatusApproved}
	eng, err := New(WithRepository(stubRepo{}), WithStore(stubStore{p: p}))
	require.NoError(t, err)

	_, err = eng.Apply(context.Background(), "p-1", ApplyOptions{Connection: "staging"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "staging")
}

func TestMergeRejectsUnknownConnection(t *testing.T) {
	eng, err := New(WithRepository(stubRepo{}), WithStore(stubStore{}))
	require.NoError(t, err)

	_, err = eng.Merge(context.Background(), 1, 2, MergeOptions{Connection: "staging"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestOptionsAccumulate(t *testing.T) {
	cfg := newConfig()
	require.NoError(t, WithDatabaseURL("postgres://localhost/raceatlas")(cfg))
	require.NoError(t, WithGeocoding(true)(cfg))

	assert.Equal(t, "postgres://localhost/raceatlas", cfg.databaseURL)
	assert.True(t, cfg.geocoding)
}
