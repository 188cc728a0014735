// Package sqlite implements the catalog and glossary read contracts on top
// of an SQLite database (modernc.org/sqlite, no CGO).
//
// Normalization and trigram similarity are registered as SQL functions
// (resolver_normalize, resolver_similarity) so that every comparison runs the
// exact same Go code the engine uses on the mention side.
package sqlite

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/scrypster/resolver/internal/logger"
	"github.com/scrypster/resolver/internal/storage"
)

// Compile-time interface checks.
var (
	_ storage.Store       = (*Store)(nil)
	_ storage.Snapshotter = (*Store)(nil)
	_ storage.Snapshot    = (*snapshot)(nil)
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads entities, glossary terms and embeddings from SQLite.
type Store struct {
	reader
	db *sql.DB
}

// NewStore opens the database at dsn, creating missing tables.
// If the initial open fails because of stale WAL files left behind by a
// crashed process, it verifies no other process holds them and retries once
// after removing the stale -shm/-wal files.
func NewStore(dsn string) (*Store, error) {
	if err := registerFunctions(); err != nil {
		return nil, errors.Wrap(err, "sqlite: failed to register SQL functions")
	}

	store, err := openStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openStore(dsn)
	if retryErr != nil {
		return nil, errors.Wrapf(retryErr, "sqlite: failed after WAL recovery (original: %v)", err)
	}

	logger.Logger.Infow("sqlite: recovered from stale WAL files", "path", dbPath)
	return store, nil
}

// openStore opens an SQLite database, configures WAL mode, and creates the schema.
func openStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: failed to open database")
	}

	// A single connection keeps ":memory:" databases coherent and lets a
	// read transaction pin the snapshot a Resolve call observes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "sqlite: %s", p)
		}
	}

	ctx := context.Background()
	migrator, err := storage.NewMigrator(ctx, db, storage.BindQuestion)
	if err == nil {
		_, err = migrator.Up(ctx, Migrations)
	}
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: failed to create schema")
	}

	return &Store{reader: reader{q: db}, db: db}, nil
}

// GetDB returns the underlying database connection. The resolver itself
// never writes through it; it exists for fixture loading and health checks.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Snapshot begins a read-only transaction. All lookups through the returned
// snapshot observe the same database state until Close.
func (s *Store) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: failed to begin read transaction")
	}
	return &snapshot{reader: reader{q: tx}, tx: tx}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// snapshot is a Store view bound to one read transaction.
type snapshot struct {
	reader
	tx   *sql.Tx
	once sync.Once
}

// Close ends the read transaction. Calling it more than once is harmless.
func (s *snapshot) Close() error {
	var err error
	s.once.Do(func() {
		err = s.tx.Rollback()
		if errors.Is(err, sql.ErrTxDone) {
			err = nil
		}
	})
	return err
}

// dbPathFromDSN extracts the filesystem path from a DSN, or "" for in-memory
// databases.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash (SIGKILL, OOM, etc.).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database path
// and no other process currently holds them open (via lsof).
// Returns false if lsof is unavailable.
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		// lsof exits 1 when no process has the files open.
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL removes -shm and -wal files for the given database path.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Logger.Warnw("sqlite: failed to remove stale WAL file", "path", path, "error", err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
