package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thatsimonsguy/dimmer-controller/internal/env"
	"github.com/thatsimonsguy/dimmer-controller/internal/pinctrl"
)

var readAllPins = pinctrl.ReadAllPins

var runScript = func(path string) error {
	cmd := exec.Command("/bin/bash", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// WriteBootScript writes a script that configures every triac pin as a
// low output before the controller starts.
func WriteBootScript() error {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Dimmer triac gates held low at boot", "")

	for _, l := range env.Cfg.Lights {
		lines = append(lines, fmt.Sprintf("# %s", l.Name))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn dl", *l.Pin))
		lines = append(lines, "")
	}
	lines = append(lines, "# zero_cross", fmt.Sprintf("pinctrl set %d ip pn", *env.Cfg.ZeroCrossPin), "")

	contents := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(env.Cfg.BootScriptFilePath, []byte(contents), 0755)
}

func InstallStartupService() error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Hold dimmer triac gates low at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, env.Cfg.BootScriptFilePath)

	return os.WriteFile(env.Cfg.OSServicePath, []byte(unitContents), 0644)
}

// InstallControllerService writes the unit for the controller itself,
// ordered after the boot script unit.
func InstallControllerService(execPath string) error {
	gpioUnitName := filepath.Base(env.Cfg.OSServicePath)

	unit := fmt.Sprintf(`[Unit]
Description=Dimmer controller
After=%s
Requires=%s

[Service]
Type=simple
WorkingDirectory=%s
ExecStart=%s -config-file %s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName, filepath.Dir(execPath), execPath, env.Cfg.ConfigFile)

	return os.WriteFile(env.Cfg.MainServicePath, []byte(unit), 0644)
}

func RunStartupScript() error {
	return runScript(env.Cfg.BootScriptFilePath)
}

// ValidateTriacPins refuses to start unless every triac gate is a low,
// unpulled output and the zero-cross line is an input, as the boot script
// leaves them.
func ValidateTriacPins() error {
	states, err := readAllPins()
	if err != nil {
		return fmt.Errorf("failed to read pin states: %w", err)
	}

	for _, l := range env.Cfg.Lights {
		ps, ok := states[*l.Pin]
		if !ok {
			return fmt.Errorf("pin %d (%s) not reported by pinctrl", *l.Pin, l.Name)
		}
		if ps.Mode != "op" || ps.Pull != "pn" || ps.Drive != "dl" {
			return fmt.Errorf("pin %d (%s) is configured %s %s %s at startup, expected op pn dl", *l.Pin, l.Name, ps.Mode, ps.Pull, ps.Drive)
		}
		if ps.Level == "hi" {
			return fmt.Errorf("pin %d (%s) is high at startup, expected low", *l.Pin, l.Name)
		}
	}

	zc := *env.Cfg.ZeroCrossPin
	if ps, ok := states[zc]; !ok || ps.Mode != "ip" {
		return fmt.Errorf("zero-cross pin %d is not configured as an input", zc)
	}
	return nil
}
