// Package monitor periodically checks that the interrupt side still agrees
// with the light registry and reports scheduler statistics.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/datadog"
	"github.com/thatsimonsguy/dimmer-controller/internal/model"
	"github.com/thatsimonsguy/dimmer-controller/internal/notifications"
)

type Checker interface {
	Verify() error
	Stats() model.SchedulerStats
}

var notify = func(cause error, st model.SchedulerStats) error {
	if !notifications.Enabled() {
		return nil
	}
	return notifications.NotifyFault(cause, st)
}

var emitStats = datadog.SchedulerStats

type Monitor struct {
	checker Checker
	// drops reports interrupt deliveries lost by the dispatcher; may be nil
	drops func() uint64
	// onFault is called once when the schedule is found inconsistent
	onFault func(error)

	lastHalfCycles uint64
	lastDrops      uint64
	stalled        bool
	faulted        bool
}

func New(checker Checker, drops func() uint64, onFault func(error)) *Monitor {
	return &Monitor{checker: checker, drops: drops, onFault: onFault}
}

// Run checks every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("Starting consistency monitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check runs one round and reports whether the dimmer is consistent.
func (m *Monitor) Check() bool {
	st := m.checker.Stats()
	emitStats(st)

	if st.Lights > 0 && st.HalfCycles == m.lastHalfCycles {
		if !m.stalled {
			log.Warn().Uint64("half_cycles", st.HalfCycles).Msg("No zero-cross detected since last check")
			m.stalled = true
		}
	} else if m.stalled {
		log.Info().Msg("Zero-cross detection resumed")
		m.stalled = false
	}
	m.lastHalfCycles = st.HalfCycles

	if m.drops != nil {
		if d := m.drops(); d != m.lastDrops {
			log.Warn().Uint64("dropped", d-m.lastDrops).Msg("Interrupt deliveries dropped")
			datadog.Count("dispatcher.drops", int64(d-m.lastDrops))
			m.lastDrops = d
		}
	}

	err := m.checker.Verify()
	if err == nil {
		return true
	}
	log.Error().Err(err).Msg("Dimmer schedule inconsistent")
	if m.faulted {
		return false
	}
	m.faulted = true
	if nerr := notify(err, st); nerr != nil {
		log.Warn().Err(nerr).Msg("Failed to send fault notification")
	}
	if m.onFault != nil {
		m.onFault(err)
	}
	return false
}
