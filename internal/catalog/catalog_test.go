package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/saasrank/internal/storage"
	"github.com/dshills/saasrank/pkg/types"
)

func supported(t types.FactType) types.Fact {
	return types.Fact{Type: t, Value: types.FactValueSupported}
}

func candidates() []types.Candidate {
	return []types.Candidate{
		{ID: "both", Facts: []types.Fact{supported(types.FactSSO), supported(types.FactAuditLog), {Type: types.FactDataResidency, Value: "japan, us"}}},
		{ID: "sso", Facts: []types.Fact{supported(types.FactSSO)}},
		{ID: "audit", Facts: []types.Fact{supported(types.FactAuditLog)}},
		{ID: "planned", Facts: []types.Fact{{Type: types.FactSSO, Value: "planned"}}},
		{ID: "none"},
	}
}

func ids(cs []types.Candidate) []types.CandidateID {
	return types.CandidateIDs(cs)
}

func TestFilterAdmissible(t *testing.T) {
	tests := []struct {
		name        string
		constraints types.Constraints
		want        []types.CandidateID
	}{
		{"no constraints", types.Constraints{}, []types.CandidateID{"both", "sso", "audit", "planned", "none"}},
		{"sso", types.Constraints{RequireSSO: true}, []types.CandidateID{"both", "sso"}},
		{"audit log", types.Constraints{RequireAuditLog: true}, []types.CandidateID{"both", "audit"}},
		{"sso and audit", types.Constraints{RequireSSO: true, RequireAuditLog: true}, []types.CandidateID{"both"}},
		{"residency", types.Constraints{DataResidency: "Japan"}, []types.CandidateID{"both"}},
		{"any residency", types.Constraints{DataResidency: types.DataResidencyAny}, []types.CandidateID{"both", "sso", "audit", "planned", "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterAdmissible(candidates(), tt.constraints)))
		})
	}
}

func TestFilterAdmissible_Empty(t *testing.T) {
	got := FilterAdmissible(nil, types.Constraints{RequireSSO: true})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type fakeSource struct {
	rows []*storage.Candidate
	err  error
	opts storage.ListOptions
}

func (f *fakeSource) ListCandidates(_ context.Context, opts storage.ListOptions) ([]*storage.Candidate, error) {
	f.opts = opts
	return f.rows, f.err
}

func TestAdmissible(t *testing.T) {
	src := &fakeSource{rows: []*storage.Candidate{
		{ID: "a", Name: "A", Category: "invoice", IsActive: true, Facts: []storage.Fact{{Type: "sso", Value: "supported"}}},
		{ID: "b", Name: "B", Category: "invoice", IsActive: true},
	}}

	sel, err := Admissible(context.Background(), src, types.Constraints{RequireSSO: true})
	require.NoError(t, err)
	assert.True(t, src.opts.ActiveOnly)
	assert.Equal(t, 2, sel.Active)
	assert.Equal(t, 1, sel.Excluded)
	require.Len(t, sel.Candidates, 1)
	assert.Equal(t, types.CandidateID("a"), sel.Candidates[0].ID)
	assert.Equal(t, types.CategoryInvoice, sel.Candidates[0].Category)
}

func TestAdmissible_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db locked")}
	_, err := Admissible(context.Background(), src, types.Constraints{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "db locked")
}
