package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLights(t *testing.T) {
	got, err := parseLights("255, 128,0,")
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 128, 0}, got)

	_, err = parseLights("300")
	assert.Error(t, err)
	_, err = parseLights(strings.Repeat("1,", 17))
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, simulate(&out, []uint8{255, 155}, 2, 10000))

	text := out.String()
	// full-on light fires at the zero-cross, the other 100 steps later
	assert.Contains(t, text, "0      0        write   pin 10 high\n")
	assert.Contains(t, text, "0      0        arm     in 3900 us\n")
	assert.Contains(t, text, "0      3900     write   pin 11 high\n")
	assert.Contains(t, text, "1      0        write   pin 10 low\n")
	assert.Contains(t, text, "half_cycles=2 timer_arms=2 fired=4 coalesced=0\n")
}
