package handler

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS log_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at INTEGER NOT NULL,
	message     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_records_received_at ON log_records(received_at);
`

// newArchive builds a handler that persists every record into a SQLite
// database and closes it at end-of-stream.
//
// Options:
//
//	path (required): database file; created and migrated if missing.
func newArchive(_ Deps, opts Options) (func(logparse.Record), error) {
	path := opts["path"]
	if path == "" {
		return nil, fmt.Errorf("archive: option %q is required", "path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open database: %w", err)
	}

	// WAL keeps inserts cheap while other tools read the archive.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: failed to initialize schema: %w", err)
	}

	insert, err := db.Prepare("INSERT INTO log_records (received_at, message) VALUES (?, ?)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: failed to prepare insert: %w", err)
	}

	return func(rec logparse.Record) {
		if rec.EndOfStream() {
			insert.Close()
			if err := db.Close(); err != nil {
				log.Printf("archive: close failed: %v", err)
			}
			return
		}

		if _, err := insert.Exec(rec.Timestamp.Unix(), string(rec.Message)); err != nil {
			log.Printf("archive: insert failed: %v", err)
		}
	}, nil
}
