package types_test

import (
	"testing"

	"github.com/scrypster/resolver/pkg/types"
)

func TestTypeStrings(t *testing.T) {
	got := types.TypeStrings([]types.EntityType{types.EntityTypeCompany, types.EntityTypeProject})
	if len(got) != 2 || got[0] != "company" || got[1] != "project" {
		t.Errorf("Unexpected strings: %v", got)
	}
}

func TestEntityMatchesTypes(t *testing.T) {
	e := &types.Entity{ID: "E1", Type: types.EntityTypeCompany}

	tests := []struct {
		name   string
		filter []types.EntityType
		want   bool
	}{
		{"empty filter", nil, true},
		{"listed", []types.EntityType{types.EntityTypePerson, types.EntityTypeCompany}, true},
		{"not listed", []types.EntityType{types.EntityTypePerson}, false},
		{"unknown type", []types.EntityType{"vendor"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.MatchesTypes(tt.filter); got != tt.want {
				t.Errorf("MatchesTypes(%v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestNewResolutionResultCopiesMetadata(t *testing.T) {
	e := &types.Entity{ID: "E1", Metadata: map[string]any{"industry": "manufacturing"}}

	r := types.NewResolutionResult(e, types.MatchSourceExact, 0.95)
	r.EntityMetadata["industry"] = "retail"

	if e.Metadata["industry"] != "manufacturing" {
		t.Error("Mutating the result metadata changed the entity")
	}
	if r.Confidence != 0.95 || r.MatchSource != types.MatchSourceExact {
		t.Errorf("Unexpected result: %+v", r)
	}

	bare := types.NewResolutionResult(&types.Entity{ID: "E2"}, types.MatchSourceFuzzy, 0.8)
	if bare.EntityMetadata != nil {
		t.Error("Expected nil metadata for an entity without metadata")
	}
}

func TestEffectiveFuzzyThreshold(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, types.DefaultFuzzyThreshold},
		{-0.5, types.DefaultFuzzyThreshold},
		{1.5, types.DefaultFuzzyThreshold},
		{0.45, 0.45},
		{1, 1},
	}
	for _, tt := range tests {
		req := types.ResolutionRequest{FuzzyThreshold: tt.in}
		if got := req.EffectiveFuzzyThreshold(); got != tt.want {
			t.Errorf("EffectiveFuzzyThreshold(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAliasTerm(t *testing.T) {
	empty := ""
	target := "E1"

	tests := []struct {
		name     string
		alias    types.AliasTerm
		resolved bool
	}{
		{"resolved public", types.AliasTerm{EntityID: &target, Scope: types.PublicScope}, true},
		{"unresolved", types.AliasTerm{Scope: "tenant-a"}, false},
		{"empty target", types.AliasTerm{EntityID: &empty, Scope: "tenant-a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.alias.IsResolved(); got != tt.resolved {
				t.Errorf("IsResolved() = %v, want %v", got, tt.resolved)
			}
		})
	}
}
