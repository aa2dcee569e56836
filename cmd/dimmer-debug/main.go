package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/dimmer-controller/db"
	"github.com/thatsimonsguy/dimmer-controller/internal/logging"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, light string
	var limit, keep int
	flag.StringVar(&dbPath, "db", "data/dimmer.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: events, prune-events")
	flag.StringVar(&light, "light", "", "Light name to filter events by")
	flag.IntVar(&limit, "limit", 50, "Number of events to show")
	flag.IntVar(&keep, "keep", 1000, "Number of newest events kept by prune-events")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of dimmer-debug:")
		fmt.Println("  -db string\tPath to the SQLite database file (default 'data/dimmer.db')")
		fmt.Println("  -cmd string\tCommand to run: events, prune-events")
		fmt.Println("  -light string\tLight name to filter events by")
		fmt.Println("  -limit int\tNumber of events to show (default 50)")
		fmt.Println("  -keep int\tNumber of newest events kept by prune-events (default 1000)")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	logging.Init(zerolog.WarnLevel, "")

	var err error
	switch command {
	case "events":
		err = db.PrintEventsCLI(os.Stdout, dbPath, light, limit)
	case "prune-events":
		if keep < 0 {
			fmt.Println("Error: keep must not be negative")
			os.Exit(1)
		}
		err = db.PruneEventsCLI(os.Stdout, dbPath, keep)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
}
