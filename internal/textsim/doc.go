// Package textsim holds the text primitives every match tier shares:
// mention normalization, character-trigram similarity and vector cosine
// similarity.
//
// Similarity mirrors PostgreSQL pg_trgm so that the SQLite backend (which
// evaluates it in Go) and the PostgreSQL backend (which calls similarity())
// rank candidates identically.
package textsim
