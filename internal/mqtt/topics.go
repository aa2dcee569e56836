package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the bridge's topic names under a configurable prefix.
//
//	dimmer/light/<name>/set    commands, payload 0..255, "on" or "off"
//	dimmer/light/<name>/state  retained JSON state
//	dimmer/status              retained online/offline
type Topics struct {
	Prefix string
}

func (t Topics) Set(name string) string {
	return fmt.Sprintf("%s/light/%s/set", t.Prefix, name)
}

// SetWildcard matches the set topic of every light.
func (t Topics) SetWildcard() string {
	return t.Prefix + "/light/+/set"
}

func (t Topics) State(name string) string {
	return fmt.Sprintf("%s/light/%s/state", t.Prefix, name)
}

func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// LightFromSet extracts the light name from a set topic.
func (t Topics) LightFromSet(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/light/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
