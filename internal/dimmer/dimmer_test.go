package dimmer

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
)

const zeroCrossPin hal.Pin = 4

func newTestDimmer(t *testing.T) (*Dimmer, *hal.Sim) {
	t.Helper()
	sim := hal.NewSim(halfCycle)
	d := New(sim, sim, sim)
	require.NoError(t, d.Begin(zeroCrossPin))
	return d, sim
}

func assertSorted(t *testing.T, d *Dimmer) {
	t.Helper()
	lights := d.Lights()
	for i, l := range lights {
		assert.Equal(t, i, l.Position, "stored position must match index")
		if i > 0 {
			assert.LessOrEqual(t, lights[i-1].Delay, l.Delay, "registry must stay sorted")
		}
	}
	require.NoError(t, d.Verify())
}

func TestDelayFor(t *testing.T) {
	assert.Equal(t, uint16(0), DelayFor(255))
	assert.Equal(t, uint16(MaxDelay), DelayFor(0))
	for v := 0; v <= 255; v++ {
		assert.Equal(t, uint16(DelayPerStep*(255-v)), DelayFor(uint8(v)))
		if v > 0 {
			assert.Less(t, DelayFor(uint8(v)), DelayFor(uint8(v-1)), "brighter must fire earlier")
		}
	}
}

func TestBegin_Twice(t *testing.T) {
	d, _ := newTestDimmer(t)
	assert.ErrorIs(t, d.Begin(zeroCrossPin), ErrAlreadyStarted)
}

func TestCreate_StartsOffAtEnd(t *testing.T) {
	d, sim := newTestDimmer(t)

	a, err := d.Create(10)
	require.NoError(t, err)
	require.NoError(t, d.SetBrightness(a, 200))

	b, err := d.Create(11)
	require.NoError(t, err)

	lights := d.Lights()
	require.Len(t, lights, 2)
	assert.Equal(t, b, lights[1].Handle)
	assert.Equal(t, uint16(MaxDelay), lights[1].Delay)
	assert.Equal(t, uint8(0), lights[1].Brightness)

	sim.RunHalfCycle()
	assert.Equal(t, []hal.Pin{10}, firedPins(sim.Fired()))
}

func TestCreate_CapacityExceeded(t *testing.T) {
	d, _ := newTestDimmer(t)

	handles := make([]Handle, 0, Capacity)
	for i := 0; i < Capacity; i++ {
		h, err := d.Create(hal.Pin(10 + i))
		require.NoError(t, err)
		require.NoError(t, d.SetBrightness(h, uint8(i*10)))
		handles = append(handles, h)
	}
	before := d.Lights()

	_, err := d.Create(99)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, before, d.Lights())
	assert.Equal(t, Capacity, d.Len())

	for i, h := range handles {
		b, err := d.Brightness(h)
		require.NoError(t, err)
		assert.Equal(t, uint8(i*10), b)
	}
}

type countingGPIO struct {
	*hal.Sim
	configured []hal.Pin
}

func (c *countingGPIO) ConfigureOutput(pin hal.Pin) error {
	c.configured = append(c.configured, pin)
	return c.Sim.ConfigureOutput(pin)
}

func TestCreate_FullRegistryDoesNotClaimPin(t *testing.T) {
	sim := hal.NewSim(halfCycle)
	gpio := &countingGPIO{Sim: sim}
	d := New(gpio, sim, sim)
	require.NoError(t, d.Begin(zeroCrossPin))

	for i := 0; i < Capacity; i++ {
		_, err := d.Create(hal.Pin(10 + i))
		require.NoError(t, err)
	}
	_, err := d.Create(99)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Len(t, gpio.configured, Capacity)
	assert.NotContains(t, gpio.configured, hal.Pin(99))
}

func TestStats_AdoptedNeverAheadOfPublished(t *testing.T) {
	d, sim := newTestDimmer(t)
	var hs []Handle
	for i := 0; i < 4; i++ {
		h, err := d.Create(hal.Pin(10 + i))
		require.NoError(t, err)
		hs = append(hs, h)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sim.RunHalfCycle()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			_ = d.SetBrightness(hs[i%len(hs)], uint8(i))
		}
	}()

	for i := 0; i < 5000; i++ {
		st := d.Stats()
		if st.AdoptedGen > st.PublishedGen {
			t.Fatalf("adopted generation %d ahead of published %d", st.AdoptedGen, st.PublishedGen)
		}
	}
	close(stop)
	wg.Wait()
}

func TestSetBrightness_RoundTrip(t *testing.T) {
	d, _ := newTestDimmer(t)
	h, err := d.Create(10)
	require.NoError(t, err)

	for _, v := range []uint8{0, 1, 77, 128, 254, 255} {
		require.NoError(t, d.SetBrightness(h, v))
		delay, err := d.Delay(h)
		require.NoError(t, err)
		assert.Equal(t, uint16(DelayPerStep*(255-uint32(v))), delay)
		b, err := d.Brightness(h)
		require.NoError(t, err)
		assert.Equal(t, v, b)
	}
}

func TestSetBrightness_SameValueIsNoop(t *testing.T) {
	d, _ := newTestDimmer(t)
	a, _ := d.Create(10)
	b, _ := d.Create(11)
	require.NoError(t, d.SetBrightness(a, 100))
	require.NoError(t, d.SetBrightness(b, 100))

	before := d.Lights()
	gen := d.Stats().PublishedGen

	require.NoError(t, d.SetBrightness(b, 100))
	assert.Equal(t, before, d.Lights())
	assert.Equal(t, gen, d.Stats().PublishedGen, "no-op must not publish")
}

func TestSetBrightness_RepositionsBothDirections(t *testing.T) {
	d, _ := newTestDimmer(t)
	var hs []Handle
	for i := 0; i < 5; i++ {
		h, err := d.Create(hal.Pin(10 + i))
		require.NoError(t, err)
		require.NoError(t, d.SetBrightness(h, uint8(250-i*50)))
		hs = append(hs, h)
	}
	assertSorted(t, d)
	assert.Equal(t, hs, handlesOf(d.Lights()))

	// dim the brightest light past two others
	require.NoError(t, d.SetBrightness(hs[0], 120))
	assertSorted(t, d)
	assert.Equal(t, []Handle{hs[1], hs[2], hs[0], hs[3], hs[4]}, handlesOf(d.Lights()))

	// brighten the dimmest light to the front
	require.NoError(t, d.SetBrightness(hs[4], 255))
	assertSorted(t, d)
	assert.Equal(t, []Handle{hs[4], hs[1], hs[2], hs[0], hs[3]}, handlesOf(d.Lights()))
}

func TestSetBrightness_RandomSequenceStaysSorted(t *testing.T) {
	d, _ := newTestDimmer(t)
	rng := rand.New(rand.NewSource(42))

	var hs []Handle
	for i := 0; i < Capacity; i++ {
		h, err := d.Create(hal.Pin(10 + i))
		require.NoError(t, err)
		hs = append(hs, h)
	}
	for i := 0; i < 2000; i++ {
		require.NoError(t, d.SetBrightness(hs[rng.Intn(len(hs))], uint8(rng.Intn(256))))
		assertSorted(t, d)
	}
}

func TestDestroy_CompactsRegistryAndSchedule(t *testing.T) {
	d, sim := newTestDimmer(t)
	a, _ := d.Create(10)
	b, _ := d.Create(11)
	c, _ := d.Create(12)
	require.NoError(t, d.SetBrightness(a, 250))
	require.NoError(t, d.SetBrightness(b, 150))
	require.NoError(t, d.SetBrightness(c, 50))
	sim.RunHalfCycle()

	require.NoError(t, d.Destroy(b))
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []Handle{a, c}, handlesOf(d.Lights()))
	assertSorted(t, d)

	sim.Reset()
	sim.RunHalfCycle()
	assert.Equal(t, []hal.Pin{10, 12}, firedPins(sim.Fired()))
	assert.False(t, sim.Level(11))
	require.NoError(t, d.Verify())

	sim.Reset()
	sim.RunHalfCycle()
	for _, e := range sim.Events {
		assert.NotEqual(t, hal.Pin(11), e.Pin, "no stale entry may be read")
	}
}

func TestDestroy_InvalidHandle(t *testing.T) {
	d, _ := newTestDimmer(t)
	h, _ := d.Create(10)

	require.NoError(t, d.Destroy(h))
	assert.ErrorIs(t, d.Destroy(h), ErrInvalidHandle)
	assert.ErrorIs(t, d.SetBrightness(h, 10), ErrInvalidHandle)
	assert.ErrorIs(t, d.Destroy(0), ErrInvalidHandle)

	_, err := d.Brightness(h)
	assert.True(t, errors.Is(err, ErrInvalidHandle))
}

func TestDestroy_SlotReuseInvalidatesOldHandle(t *testing.T) {
	d, _ := newTestDimmer(t)
	old, _ := d.Create(10)
	require.NoError(t, d.Destroy(old))

	fresh, err := d.Create(11)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)
	assert.ErrorIs(t, d.SetBrightness(old, 10), ErrInvalidHandle)
	assert.NoError(t, d.SetBrightness(fresh, 10))
}

func TestHalfCycle_FiresInDelayOrder(t *testing.T) {
	d, sim := newTestDimmer(t)
	a, _ := d.Create(10)
	b, _ := d.Create(11)
	c, _ := d.Create(12)
	require.NoError(t, d.SetBrightness(a, 60))
	require.NoError(t, d.SetBrightness(b, 255))
	require.NoError(t, d.SetBrightness(c, 180))

	sim.RunHalfCycle()
	fired := sim.Fired()
	assert.Equal(t, []hal.Pin{11, 12, 10}, firedPins(fired))
	assert.Equal(t, uint32(0), fired[0].At)
	assert.Equal(t, uint32(DelayFor(180)), fired[1].At)
	assert.Equal(t, uint32(DelayFor(60)), fired[2].At)

	st := d.Stats()
	assert.Equal(t, uint64(1), st.HalfCycles)
	assert.Equal(t, uint64(3), st.Fired)
	assert.Equal(t, st.PublishedGen, st.AdoptedGen)
	assert.False(t, st.Pending)
}

func TestHalfCycle_ChangeAppliesAtNextZeroCross(t *testing.T) {
	d, sim := newTestDimmer(t)
	h, _ := d.Create(10)
	require.NoError(t, d.SetBrightness(h, 255))
	sim.RunHalfCycle()

	// a change mid half-cycle does not disturb the running schedule
	sim.ZeroCross()
	require.NoError(t, d.SetBrightness(h, 128))
	assert.True(t, d.Stats().Pending)
	for sim.Expire() {
	}

	sim.Reset()
	start := sim.Now()
	sim.RunHalfCycle()
	fired := sim.Fired()
	require.Len(t, fired, 1)
	assert.Equal(t, uint32(DelayFor(128)), fired[0].At-start)
}

func TestVerify_DetectsDivergence(t *testing.T) {
	d, sim := newTestDimmer(t)
	_, _ = d.Create(10)
	sim.RunHalfCycle()
	require.NoError(t, d.Verify())

	// corrupt the adopted length behind the registry's back
	d.sched.adoptedLen.Store(3)
	assert.ErrorIs(t, d.Verify(), ErrInconsistentSchedule)
}

func handlesOf(lights []LightInfo) []Handle {
	out := make([]Handle, 0, len(lights))
	for _, l := range lights {
		out = append(out, l.Handle)
	}
	return out
}
