package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/dimmer-controller/internal/config"
	"github.com/thatsimonsguy/dimmer-controller/internal/env"
)

func intPtr(i int) *int { return &i }

func stub(t *testing.T, safeMode bool, driveErr error) (*[]int, *int) {
	t.Helper()
	origExit, origDrive := exit, driveAllLow
	t.Cleanup(func() { exit, driveAllLow = origExit, origDrive; env.Cfg = nil })

	env.Cfg = &config.Config{
		SafeMode: safeMode,
		Lights:   []config.Light{{Name: "living", Pin: intPtr(22)}, {Name: "hall", Pin: intPtr(23)}},
	}
	var driven []int
	code := -1
	driveAllLow = func(pins []int) error { driven = append(driven, pins...); return driveErr }
	exit = func(c int) { code = c }
	return &driven, &code
}

func TestShutdown_DrivesTriacsLow(t *testing.T) {
	driven, code := stub(t, false, nil)
	Shutdown()
	assert.Equal(t, []int{22, 23}, *driven)
	assert.Equal(t, 0, *code)
}

func TestShutdown_SafeModeLeavesPins(t *testing.T) {
	driven, code := stub(t, true, nil)
	ShutdownWithError(errors.New("boom"), "Fatal")
	assert.Empty(t, *driven)
	assert.Equal(t, 0, *code)
}

func TestShutdown_DriveFailureExitsNonZero(t *testing.T) {
	_, code := stub(t, false, errors.New("pinctrl missing"))
	Shutdown()
	assert.Equal(t, 1, *code)
}
