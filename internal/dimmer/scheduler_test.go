package dimmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
)

const halfCycle = 10000

func newTestScheduler(delays ...uint16) (*scheduler, *hal.Sim) {
	sim := hal.NewSim(halfCycle)
	s := newScheduler(sim, sim)
	sim.OnExpire(s.onTimerExpire)
	sim.AttachRisingEdge(2, s.onZeroCross)

	sc := &schedule{gen: 1, n: len(delays)}
	for i, d := range delays {
		sc.entries[i] = entry{pin: hal.Pin(10 + i), delay: d}
	}
	s.publish(sc)
	return s, sim
}

func firedPins(events []hal.Event) []hal.Pin {
	var pins []hal.Pin
	for _, e := range events {
		pins = append(pins, e.Pin)
	}
	return pins
}

func TestZeroCross_FiresImmediateAndArmsNext(t *testing.T) {
	_, sim := newTestScheduler(100, 5000, 9000)

	sim.ZeroCross()
	assert.Equal(t, []hal.Pin{10}, firedPins(sim.Fired()))
	armed, delay := sim.Armed()
	require.True(t, armed)
	assert.Equal(t, uint32(5000), delay)

	sim.Reset()
	require.True(t, sim.Expire())
	assert.Equal(t, []hal.Pin{11}, firedPins(sim.Fired()))
	armed, delay = sim.Armed()
	require.True(t, armed)
	assert.Equal(t, uint32(4000), delay)

	sim.Reset()
	require.True(t, sim.Expire())
	assert.Equal(t, []hal.Pin{12}, firedPins(sim.Fired()))
	armed, _ = sim.Armed()
	assert.False(t, armed, "no arm after the last light")
}

func TestZeroCross_CoalescesCloseLights(t *testing.T) {
	s, sim := newTestScheduler(100, 200, 9000)

	sim.ZeroCross()
	assert.Equal(t, []hal.Pin{10, 11}, firedPins(sim.Fired()))
	arms := sim.Arms()
	require.Len(t, arms, 1)
	assert.Equal(t, uint32(8800), arms[0].Delay)
	assert.Equal(t, uint64(1), s.coalesced.Load())

	sim.Reset()
	require.True(t, sim.Expire())
	assert.Equal(t, []hal.Pin{12}, firedPins(sim.Fired()))
	assert.Empty(t, sim.Arms())
}

func TestTimerExpire_CoalescesChain(t *testing.T) {
	_, sim := newTestScheduler(3000, 3100, 3200, 3400, 6000)

	sim.RunHalfCycle()
	fired := sim.Fired()
	require.Len(t, fired, 5)
	assert.Equal(t, []hal.Pin{10, 11, 12, 13, 14}, firedPins(fired))
	// 3100 and 3200 ride along with 3000. Gaps are measured from the last
	// fired light's nominal delay, so later firings run early by the skew.
	assert.Equal(t, uint32(3000), fired[0].At)
	assert.Equal(t, uint32(3000), fired[2].At)
	assert.Equal(t, uint32(3200), fired[3].At)
	assert.Equal(t, uint32(5800), fired[4].At)

	var delays []uint32
	for _, a := range sim.Arms() {
		delays = append(delays, a.Delay)
	}
	assert.Equal(t, []uint32{3000, 200, 2600}, delays)
}

func TestZeroCross_AllOffBeforeFiring(t *testing.T) {
	_, sim := newTestScheduler(0, 4000)

	sim.RunHalfCycle()
	assert.True(t, sim.Level(10))
	assert.True(t, sim.Level(11))

	sim.Reset()
	sim.ZeroCross()
	require.GreaterOrEqual(t, len(sim.Events), 3)
	// first two events are the off writes for both lights, then the full-on light
	assert.Equal(t, hal.Event{At: sim.Now(), Kind: hal.EventWrite, Pin: 10, High: false}, sim.Events[0])
	assert.Equal(t, hal.Event{At: sim.Now(), Kind: hal.EventWrite, Pin: 11, High: false}, sim.Events[1])
	assert.Equal(t, hal.Event{At: sim.Now(), Kind: hal.EventWrite, Pin: 10, High: true}, sim.Events[2])
	assert.False(t, sim.Level(11))
}

func TestZeroCross_OffLightsNeverFire(t *testing.T) {
	_, sim := newTestScheduler(2000, MaxDelay, MaxDelay)

	sim.RunHalfCycle()
	assert.Equal(t, []hal.Pin{10}, firedPins(sim.Fired()))
	require.Len(t, sim.Arms(), 1)
}

func TestZeroCross_EmptyScheduleArmsNothing(t *testing.T) {
	_, sim := newTestScheduler()

	sim.RunHalfCycle()
	assert.Empty(t, sim.Events)
}

func TestZeroCross_CancelsLateTimer(t *testing.T) {
	_, sim := newTestScheduler(5000)

	sim.ZeroCross()
	armed, _ := sim.Armed()
	require.True(t, armed)

	// next edge arrives before the timer expired
	sim.ZeroCross()
	armed, delay := sim.Armed()
	require.True(t, armed)
	assert.Equal(t, uint32(5000), delay)

	var cancels int
	for _, e := range sim.Events {
		if e.Kind == hal.EventCancel {
			cancels++
		}
	}
	assert.Equal(t, 1, cancels)
}

func TestZeroCross_AdoptsLatestPublishedOnly(t *testing.T) {
	s, sim := newTestScheduler(1000)

	second := &schedule{gen: 2, n: 1}
	second.entries[0] = entry{pin: 20, delay: 2000}
	third := &schedule{gen: 3, n: 1}
	third.entries[0] = entry{pin: 30, delay: 3000}
	s.publish(second)
	s.publish(third)

	sim.RunHalfCycle()
	assert.Equal(t, []hal.Pin{30}, firedPins(sim.Fired()))
	assert.Equal(t, uint64(3), s.adoptedGen.Load())
	assert.Nil(t, s.pending.Load())
}

func TestZeroCross_OldScheduleDrivenLowOnSwap(t *testing.T) {
	s, sim := newTestScheduler(0, 0)
	sim.RunHalfCycle()

	next := &schedule{gen: 2, n: 1}
	next.entries[0] = entry{pin: 10, delay: 0}
	s.publish(next)

	sim.RunHalfCycle()
	assert.True(t, sim.Level(10))
	assert.False(t, sim.Level(11), "removed light must be driven low")

	sim.Reset()
	sim.RunHalfCycle()
	for _, e := range sim.Events {
		assert.NotEqual(t, hal.Pin(11), e.Pin, "removed light must not be touched again")
	}
}

func TestTimerExpire_SpuriousIsIgnored(t *testing.T) {
	s, sim := newTestScheduler(100)
	sim.ZeroCross()
	sim.Reset()

	s.onTimerExpire()
	assert.Empty(t, sim.Events)
}
