package storagetest

import "github.com/scrypster/resolver/pkg/types"

// AcmeFixtures is the canonical scenario catalog: one company with a public
// glossary alias and a single indexed document vector.
func AcmeFixtures() Fixtures {
	return Fixtures{
		Entities: []types.Entity{
			{
				ID:       "E1",
				Slug:     "acme-corp",
				Name:     "Acme Corporation",
				Type:     types.EntityTypeCompany,
				Metadata: map[string]any{"industry": "manufacturing"},
			},
		},
		Aliases: []types.AliasTerm{
			{ID: "A1", Term: "acme", EntityID: StrPtr("E1"), Scope: types.PublicScope},
		},
		Vectors: []types.EmbeddingVector{
			{ID: "V1", EntityID: "E1", DocumentID: "doc-1", Vector: []float32{1, 0, 0}},
		},
	}
}

// Vector82 is a unit vector whose cosine similarity to [1,0,0] is 0.82.
var Vector82 = []float32{0.82, 0.5723635, 0}
