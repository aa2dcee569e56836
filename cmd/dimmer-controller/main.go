package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/db"
	"github.com/thatsimonsguy/dimmer-controller/internal/api"
	"github.com/thatsimonsguy/dimmer-controller/internal/config"
	"github.com/thatsimonsguy/dimmer-controller/internal/datadog"
	"github.com/thatsimonsguy/dimmer-controller/internal/dimmer"
	"github.com/thatsimonsguy/dimmer-controller/internal/env"
	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
	"github.com/thatsimonsguy/dimmer-controller/internal/lightcontroller"
	"github.com/thatsimonsguy/dimmer-controller/internal/logging"
	"github.com/thatsimonsguy/dimmer-controller/internal/monitor"
	"github.com/thatsimonsguy/dimmer-controller/internal/mqtt"
	"github.com/thatsimonsguy/dimmer-controller/internal/notifications"
	"github.com/thatsimonsguy/dimmer-controller/system/shutdown"
	"github.com/thatsimonsguy/dimmer-controller/system/startup"
)

func main() {
	install := flag.Bool("install", false, "Write the boot script and systemd units, then exit")
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Int("lights", len(cfg.Lights)).
		Msg("Starting dimmer controller")

	if *install {
		runInstall()
		return
	}

	datadog.InitMetrics()
	notifications.Init()

	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED - triac outputs are disabled system-wide")
	} else if err := startup.ValidateTriacPins(); err != nil {
		log.Fatal().Err(err).Msg("Refusing to drive triacs due to unsafe pin states")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := hal.NewDispatcher(64)
	go dispatcher.Run(ctx)

	chip, err := hal.OpenChip(cfg.GPIOChip, dispatcher)
	if err != nil {
		log.Fatal().Err(err).Str("chip", cfg.GPIOChip).Msg("Failed to open GPIO chip")
	}
	gpio := hal.NewSafeGPIO(chip, cfg.SafeMode)
	timer := hal.NewSoftTimer(dispatcher)

	dim := dimmer.New(gpio, chip, timer)
	if err := dim.Begin(hal.Pin(*cfg.ZeroCrossPin)); err != nil {
		chip.Close()
		shutdown.ShutdownWithError(err, "Failed to start dimmer")
	}

	var audit lightcontroller.Auditor
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.DBPath).Msg("Audit log unavailable, continuing without it")
	} else {
		audit = db.Audit{DB: database}
	}

	lights := lightcontroller.New(dim, audit)
	for _, l := range cfg.Lights {
		if err := lights.Add(l.Name, *l.Pin, "config"); err != nil {
			chip.Close()
			shutdown.ShutdownWithError(err, "Failed to register light "+l.Name)
		}
	}

	var bridge *mqtt.Bridge
	if cfg.MQTT.Broker != "" {
		bridge, err = mqtt.Connect(cfg.MQTT, lights)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT bridge unavailable")
		} else {
			lights.OnChange(bridge.PublishState)
		}
	}

	go func() {
		if err := api.NewServer(database, lights).Start(cfg.APIPort); err != nil {
			log.Error().Err(err).Msg("REST API server stopped")
			stop()
		}
	}()

	mon := monitor.New(lights, dispatcher.Drops, func(err error) {
		log.Error().Err(err).Msg("Stopping on inconsistent schedule")
		stop()
	})
	go mon.Run(ctx, time.Duration(cfg.MonitorIntervalSeconds)*time.Second)

	<-ctx.Done()
	log.Info().Msg("Shutting down dimmer controller")

	if bridge != nil {
		bridge.Close()
	}
	<-dispatcher.Done()
	if err := chip.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to release GPIO lines")
	}
	if database != nil {
		database.Close()
	}
	shutdown.Shutdown()
}

func runInstall() {
	if err := startup.WriteBootScript(); err != nil {
		log.Fatal().Err(err).Msg("Failed to write boot script")
	}
	if err := startup.InstallStartupService(); err != nil {
		log.Fatal().Err(err).Msg("Failed to install boot script service")
	}
	exe, err := os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve executable path")
	}
	if err := startup.InstallControllerService(exe); err != nil {
		log.Fatal().Err(err).Msg("Failed to install controller service")
	}
	if err := startup.RunStartupScript(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run boot script")
	}
	log.Info().
		Str("script", env.Cfg.BootScriptFilePath).
		Str("service", env.Cfg.MainServicePath).
		Msg("Installed boot script and services")
}
