// Package types defines the core data structures shared by the resolver:
// catalog entities, curated alias terms, embedding vectors, and the
// request/result shapes exchanged with callers.
package types

// EntityType is the tag that classifies a catalog entity.
// The catalog may carry types beyond the constants below; unknown types are
// accepted everywhere and simply match nothing they are not stored under.
type EntityType string

// Well-known entity types.
const (
	EntityTypePerson  EntityType = "person"
	EntityTypeCompany EntityType = "company"
	EntityTypeProject EntityType = "project"
	EntityTypeConcept EntityType = "concept"
)

// PublicScope is the distinguished alias scope visible to every tenant.
const PublicScope = "public"

// MatchSource names the tier that produced a resolution.
type MatchSource string

// Match sources, in cascade order.
const (
	MatchSourceGlossary MatchSource = "glossary"
	MatchSourceExact    MatchSource = "exact"
	MatchSourceFuzzy    MatchSource = "fuzzy"
	MatchSourceSemantic MatchSource = "semantic"
)

// TypeStrings returns the filter as plain strings, in input order.
func TypeStrings(filter []EntityType) []string {
	out := make([]string, len(filter))
	for i, t := range filter {
		out[i] = string(t)
	}
	return out
}
