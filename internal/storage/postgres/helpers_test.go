// This file contains test helpers only available during testing.
package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
)

// TruncateForTest removes all catalog rows. It is defined in the postgres
// package so it can reach the unexported db field, and exported so the
// postgres_test package can call it.
func (s *Store) TruncateForTest(ctx context.Context) error {
	tables := "entities, glossary_terms"
	if s.vectors {
		tables += ", entity_embeddings"
	}
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+tables+" CASCADE"); err != nil {
		return errors.Wrap(err, "postgres: failed to truncate catalog")
	}
	return nil
}
