package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// RecordEvent appends one light command to the audit log and returns its id.
func RecordEvent(db *sql.DB, ev model.LightEvent) (int64, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	res, err := db.Exec(`INSERT INTO light_events (light, action, brightness, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.Light, string(ev.Action), int(ev.Brightness), ev.Source, ev.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to record event for light %s: %w", ev.Light, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}
	return id, nil
}

// PruneEvents deletes all but the newest keep events and reports how many
// rows were removed.
func PruneEvents(db *sql.DB, keep int) (int64, error) {
	tx, err := StartTransaction(db)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`DELETE FROM light_events WHERE id NOT IN (SELECT id FROM light_events ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		RollbackTransaction(tx)
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := CommitTransaction(tx); err != nil {
		return 0, err
	}
	return n, nil
}
