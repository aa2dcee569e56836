package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/env"
	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

var dogstatsd *statsd.Client

func InitMetrics() {
	if !env.Cfg.EnableDatadog {
		log.Info().Msg("Datadog metrics disabled")
		return
	}

	var err error
	dogstatsd, err = statsd.New(env.Cfg.DDAgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = env.Cfg.DDNamespace
	dogstatsd.Tags = env.Cfg.DDTags

	log.Info().
		Str("addr", env.Cfg.DDAgentAddr).
		Str("namespace", env.Cfg.DDNamespace).
		Strs("tags", env.Cfg.DDTags).
		Msg("Datadog metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Gauge(name, value, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Count(name string, value int64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Count(name, value, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}

// SchedulerStats emits the dimmer counters as gauges.
func SchedulerStats(st model.SchedulerStats) {
	Gauge("scheduler.lights", float64(st.Lights))
	Gauge("scheduler.half_cycles", float64(st.HalfCycles))
	Gauge("scheduler.timer_arms", float64(st.TimerArms))
	Gauge("scheduler.fired", float64(st.Fired))
	Gauge("scheduler.coalesced", float64(st.Coalesced))
	Gauge("scheduler.generation_lag", float64(generationLag(st)))
}

// generationLag is how many published schedules the interrupt side has not
// adopted yet. A racing read that sees adoption first counts as no lag.
func generationLag(st model.SchedulerStats) uint64 {
	if st.AdoptedGen >= st.PublishedGen {
		return 0
	}
	return st.PublishedGen - st.AdoptedGen
}

// LightBrightness records the brightness of one light.
func LightBrightness(name string, brightness uint8) {
	Gauge("light.brightness", float64(brightness), "light:"+name)
}
