package model

import "time"

type LightAction string

const (
	ActionCreate     LightAction = "create"
	ActionBrightness LightAction = "brightness"
	ActionDestroy    LightAction = "destroy"
)

// LightState is the externally visible state of a named light.
type LightState struct {
	Name       string `json:"name"`
	Pin        int    `json:"pin"`
	Brightness uint8  `json:"brightness"`
	DelayUS    uint16 `json:"delay_us"`
	Position   int    `json:"position"`
}

// LightEvent is one audited command against a light.
type LightEvent struct {
	ID         int64       `json:"id"`
	Light      string      `json:"light"`
	Action     LightAction `json:"action"`
	Brightness uint8       `json:"brightness"`
	Source     string      `json:"source"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SchedulerStats mirrors the dimmer counters for the API and metrics.
type SchedulerStats struct {
	Lights       int    `json:"lights"`
	HalfCycles   uint64 `json:"half_cycles"`
	TimerArms    uint64 `json:"timer_arms"`
	Fired        uint64 `json:"fired"`
	Coalesced    uint64 `json:"coalesced"`
	PublishedGen uint64 `json:"published_generation"`
	AdoptedGen   uint64 `json:"adopted_generation"`
	Pending      bool   `json:"pending"`
}
