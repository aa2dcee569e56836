package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

// RecentEvents returns up to limit events, newest first.
func RecentEvents(db *sql.DB, limit int) ([]model.LightEvent, error) {
	rows, err := db.Query(`SELECT id, light, action, brightness, source, created_at FROM light_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return scanEvents(rows)
}

// EventsForLight returns up to limit events for one light, newest first.
func EventsForLight(db *sql.DB, light string, limit int) ([]model.LightEvent, error) {
	rows, err := db.Query(`SELECT id, light, action, brightness, source, created_at FROM light_events WHERE light = ? ORDER BY id DESC LIMIT ?`, light, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for light %s: %w", light, err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]model.LightEvent, error) {
	defer rows.Close()

	events := []model.LightEvent{}
	for rows.Next() {
		var (
			ev         model.LightEvent
			action     string
			brightness int
			createdAt  string
		)
		if err := rows.Scan(&ev.ID, &ev.Light, &action, &brightness, &ev.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Action = model.LightAction(action)
		ev.Brightness = uint8(brightness)
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event time %q: %w", createdAt, err)
		}
		ev.CreatedAt = t
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
