package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/dimmer-controller/internal/dimmer"
	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
	"github.com/thatsimonsguy/dimmer-controller/internal/logging"
)

const (
	zeroCrossPin hal.Pin = 4
	firstPin             = 10
)

func main() {
	var lights string
	var cycles int
	var halfCycle uint
	flag.StringVar(&lights, "lights", "255,128,60", "Comma separated brightness (0-255) of each simulated light")
	flag.IntVar(&cycles, "cycles", 2, "Number of half-cycles to simulate")
	flag.UintVar(&halfCycle, "half-cycle", 10000, "Half-cycle length in microseconds (10000 for 50 Hz, 8333 for 60 Hz)")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("\nUsage of dimmer-sim:")
		fmt.Println("  -lights string\tComma separated brightness of each light (default '255,128,60')")
		fmt.Println("  -cycles int\tNumber of half-cycles to simulate (default 2)")
		fmt.Println("  -half-cycle uint\tHalf-cycle length in microseconds (default 10000)")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	logging.Init(zerolog.WarnLevel, "")

	levels, err := parseLights(lights)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := simulate(os.Stdout, levels, cycles, uint32(halfCycle)); err != nil {
		fmt.Printf("Simulation failed: %v\n", err)
		os.Exit(1)
	}
}

func parseLights(s string) ([]uint8, error) {
	var out []uint8
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid brightness %q", f)
		}
		out = append(out, uint8(v))
	}
	if len(out) > dimmer.Capacity {
		return nil, fmt.Errorf("at most %d lights, got %d", dimmer.Capacity, len(out))
	}
	return out, nil
}

// simulate drives the dimmer on virtual hardware and prints every pin write
// and timer arm relative to the start of its half-cycle.
func simulate(w io.Writer, levels []uint8, cycles int, halfCycle uint32) error {
	sim := hal.NewSim(halfCycle)
	d := dimmer.New(sim, sim, sim)
	if err := d.Begin(zeroCrossPin); err != nil {
		return err
	}

	for i, v := range levels {
		h, err := d.Create(hal.Pin(firstPin + i))
		if err != nil {
			return err
		}
		if err := d.SetBrightness(h, v); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "%-6s %-8s %-7s %s\n", "cycle", "t_us", "event", "detail")
	for c := 0; c < cycles; c++ {
		start := sim.Now()
		sim.Reset()
		sim.RunHalfCycle()
		for _, e := range sim.Events {
			fmt.Fprintf(w, "%-6d %-8d %-7s %s\n", c, e.At-start, e.Kind, detail(e))
		}
	}

	if err := d.Verify(); err != nil {
		return err
	}
	st := d.Stats()
	fmt.Fprintf(w, "\nhalf_cycles=%d timer_arms=%d fired=%d coalesced=%d\n", st.HalfCycles, st.TimerArms, st.Fired, st.Coalesced)
	return nil
}

func detail(e hal.Event) string {
	switch e.Kind {
	case hal.EventWrite:
		level := "low"
		if e.High {
			level = "high"
		}
		return fmt.Sprintf("pin %d %s", e.Pin, level)
	case hal.EventArm:
		return fmt.Sprintf("in %d us", e.Delay)
	default:
		return ""
	}
}
