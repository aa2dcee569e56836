package db

import (
	"fmt"
	"io"

	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

// PrintEventsCLI writes the newest events to w, optionally for one light.
func PrintEventsCLI(w io.Writer, dbPath, light string, limit int) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	var events []model.LightEvent
	if light == "" {
		events, err = RecentEvents(dbConn, limit)
	} else {
		events, err = EventsForLight(dbConn, light, limit)
	}
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%6d  %s  %-12s %-10s %3d  %s\n",
			ev.ID, ev.CreatedAt.Local().Format("2006-01-02 15:04:05"), ev.Light, ev.Action, ev.Brightness, ev.Source)
	}
	return nil
}

// PruneEventsCLI trims the audit log to the newest keep events.
func PruneEventsCLI(w io.Writer, dbPath string, keep int) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	n, err := PruneEvents(dbConn, keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed %d events\n", n)
	return nil
}
