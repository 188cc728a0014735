package storage

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Migration is one versioned schema step. Up must be safe to run against a
// database that already has the objects it creates, since catalogs are often
// provisioned by the owning service before the resolver first connects.
type Migration struct {
	Version uint
	Name    string
	Up      string
}

// Bind-parameter styles accepted by NewMigrator.
const (
	BindQuestion = "?" // SQLite
	BindDollar   = "$" // PostgreSQL
)

// Migrator applies schema migrations and records them in a
// schema_migrations table.
type Migrator struct {
	db          *sql.DB
	placeholder string
}

// NewMigrator creates the schema_migrations table if needed.
func NewMigrator(ctx context.Context, db *sql.DB, placeholder string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrations: database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "migrations: failed to create schema table")
	}
	return &Migrator{db: db, placeholder: placeholder}, nil
}

// Up applies every migration not yet recorded, in ascending version order,
// each in its own transaction. It returns the number applied.
func (m *Migrator) Up(ctx context.Context, migrations []Migration) (int, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}

	pending := slices.Clone(migrations)
	slices.SortFunc(pending, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	count := 0
	for _, mig := range pending {
		if slices.Contains(applied, mig.Version) {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "migrations: begin version %d", mig.Version)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
		return errors.Wrapf(err, "migrations: failed to apply version %d (%s)", mig.Version, mig.Name)
	}

	insert := "INSERT INTO schema_migrations (version, name) VALUES (" + m.bind(1) + ", " + m.bind(2) + ")"
	if _, err := tx.ExecContext(ctx, insert, mig.Version, mig.Name); err != nil {
		return errors.Wrapf(err, "migrations: failed to record version %d", mig.Version)
	}
	return errors.Wrapf(tx.Commit(), "migrations: commit version %d", mig.Version)
}

// Applied returns the recorded versions in ascending order.
func (m *Migrator) Applied(ctx context.Context) ([]uint, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, errors.Wrap(err, "migrations: failed to query versions")
	}
	defer rows.Close()

	var versions []uint
	for rows.Next() {
		var v uint
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "migrations: failed to scan version")
		}
		versions = append(versions, v)
	}
	return versions, errors.Wrap(rows.Err(), "migrations: failed to read versions")
}

// Version returns the highest applied version, or 0 when none is recorded.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	versions, err := m.Applied(ctx)
	if err != nil || len(versions) == 0 {
		return 0, err
	}
	return versions[len(versions)-1], nil
}

func (m *Migrator) bind(n int) string {
	if m.placeholder == BindDollar {
		return "$" + strconv.Itoa(n)
	}
	return BindQuestion
}
