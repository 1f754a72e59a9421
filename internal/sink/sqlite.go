package sink

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

type sqliteSink struct {
	db  *sql.DB
	log logger.Logger
	mu  sync.Mutex
}

// NewSQLite opens (or creates) the staging database. The WAL journal keeps
// readers out of the writer's way while a run is loading.
func NewSQLite(cfg SQLiteConfig, log logger.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := cfg.Path + "?_journal=WAL&_auto_vacuum=2"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.Path).
		Msg("sqlite staging sink initialized")

	return &sqliteSink{db: db, log: log}, nil
}

func sqlType(t inventory.FieldType) string {
	switch t {
	case inventory.TypeInt, inventory.TypeEpoch:
		return "INTEGER"
	case inventory.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (s *sqliteSink) WriteBatch(batch Batch) error {
	if len(batch.Schema) == 0 {
		return errFactory.WithMessage(ErrWriteFailed, "batch carries no schema")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := sanitizeName(batch.Name)
	names := batch.Schema.Names()

	cols := make([]string, len(batch.Schema))
	for i, f := range batch.Schema {
		cols[i] = f.Name + " " + sqlType(f.Type)
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if _, err := s.db.Exec(create); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders)

	stmt, err := tx.Prepare(insert)
	if err != nil {
		s.rollback(tx)

		return errFactory.Wrap(ErrWriteFailed, err)
	}
	defer stmt.Close()

	values := make([]any, len(names))

	for _, rec := range batch.Rows {
		for i, name := range names {
			values[i] = rec.Field(name).SQL()
		}

		if _, err := stmt.Exec(values...); err != nil {
			s.rollback(tx)

			return errFactory.Wrap(ErrWriteFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	s.log.Debug().
		Str("table", table).
		Int("rows", len(batch.Rows)).
		Msg("batch staged to sqlite")

	return nil
}

func (s *sqliteSink) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		s.log.Error().Err(err).Msg("failed to roll back transaction")
	}
}

func (s *sqliteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Checkpoint WAL and cleanup on close
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	if err := s.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}
