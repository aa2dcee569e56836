// Package notifications pushes dimmer faults to an ntfy topic.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/env"
	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

// ntfy priority 4 is "high": it bypasses quiet notification channels.
const faultPriority = 4

var (
	client  *http.Client
	baseURL = "https://ntfy.sh"
	topic   string
)

type message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func Init() {
	if env.Cfg.NtfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - fault notifications disabled")
		client = nil
		return
	}
	client = &http.Client{Timeout: 10 * time.Second}
	topic = env.Cfg.NtfyTopic
	log.Info().Str("topic", topic).Msg("Ntfy fault notifications initialized")
}

func Enabled() bool { return client != nil }

// NotifyFault reports a failed schedule check together with the scheduler
// counters at the time it was seen.
func NotifyFault(cause error, st model.SchedulerStats) error {
	if client == nil {
		return fmt.Errorf("notifications not initialized")
	}

	body := fmt.Sprintf("%v\n\nlights=%d half_cycles=%d fired=%d published_gen=%d adopted_gen=%d\nTriac outputs are being driven low.",
		cause, st.Lights, st.HalfCycles, st.Fired, st.PublishedGen, st.AdoptedGen)
	return post(message{
		Topic:    topic,
		Title:    fmt.Sprintf("Dimmer stopped: schedule check failed (%d lights)", st.Lights),
		Message:  body,
		Priority: faultPriority,
		Tags:     []string{"bulb", "warning"},
	})
}

func post(m message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	resp, err := client.Post(baseURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	log.Debug().Str("title", m.Title).Msg("Fault notification sent")
	return nil
}
