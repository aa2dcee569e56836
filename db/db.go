package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS light_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	light TEXT NOT NULL,
	action TEXT NOT NULL,
	brightness INTEGER NOT NULL,
	source TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_light_events_light ON light_events (light, id);
`

// Open opens the sqlite database at dbPath, creating the file and its
// directory if needed, and applies the schema.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("Database opened")
	return db, nil
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Audit records light commands into the database.
type Audit struct {
	DB *sql.DB
}

func (a Audit) Record(ev model.LightEvent) error {
	_, err := RecordEvent(a.DB, ev)
	return err
}
