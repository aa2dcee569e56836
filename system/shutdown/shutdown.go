package shutdown

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/env"
	"github.com/thatsimonsguy/dimmer-controller/internal/pinctrl"
)

var (
	exit        = os.Exit
	driveAllLow = pinctrl.DriveAllLow
)

// Shutdown forces every triac gate low and exits. In safe mode the outputs
// were never driven, so they are left alone.
func Shutdown() {
	code := 0
	if !env.Cfg.SafeMode {
		if err := driveAllLow(env.Cfg.TriacPins()); err != nil {
			log.Error().Err(err).Msg("Failed to drive triac pins low")
			code = 1
		} else {
			log.Info().Ints("pins", env.Cfg.TriacPins()).Msg("Triac pins driven low")
		}
	}
	exit(code)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	Shutdown()
}
