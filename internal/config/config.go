package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thatsimonsguy/dimmer-controller/internal/dimmer"
)

type Light struct {
	Name string `yaml:"name"`
	Pin  *int   `yaml:"pin"`
}

type MQTT struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883, empty disables the bridge
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type Config struct {
	ConfigFile string        `yaml:"-"`
	LogLevel   zerolog.Level `yaml:"-"`

	LogFile  string `yaml:"log_file"`
	SafeMode bool   `yaml:"safe_mode"`

	GPIOChip     string  `yaml:"gpio_chip"`
	ZeroCrossPin *int    `yaml:"zero_cross_pin"`
	Lights       []Light `yaml:"lights"`

	APIPort int    `yaml:"api_port"`
	DBPath  string `yaml:"db_path"`
	MQTT    MQTT   `yaml:"mqtt"`

	EnableDatadog bool     `yaml:"enable_datadog"`
	DDAgentAddr   string   `yaml:"dd_agent_addr"`
	DDNamespace   string   `yaml:"dd_namespace"`
	DDTags        []string `yaml:"dd_tags"`

	NtfyTopic string `yaml:"ntfy_topic"`

	MonitorIntervalSeconds int `yaml:"monitor_interval_seconds"`

	BootScriptFilePath string `yaml:"boot_script_file_path"`
	OSServicePath      string `yaml:"os_service_path"`
	MainServicePath    string `yaml:"main_service_path"`
}

func Load() Config {
	var (
		cfgFile  string
		logLevel string
		safeMode bool
	)

	flag.StringVar(&cfgFile, "config-file", "config.yaml", "Path to controller config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&safeMode, "safe-mode", false, "Disable all triac output writes")
	flag.Parse()

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}

	cfg, err := Parse(data)
	if err != nil {
		panic("Failed to parse config file: " + err.Error())
	}
	cfg.ConfigFile = cfgFile
	cfg.LogLevel = parseLogLevel(logLevel)
	cfg.SafeMode = cfg.SafeMode || safeMode

	cfg.validate()
	return cfg
}

// Parse decodes a YAML config and fills in defaults. It does not validate.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.GPIOChip == "" {
		cfg.GPIOChip = "gpiochip0"
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/dimmer.db"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "dimmer-controller"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "dimmer"
	}
	if cfg.MonitorIntervalSeconds == 0 {
		cfg.MonitorIntervalSeconds = 10
	}
	if cfg.BootScriptFilePath == "" {
		cfg.BootScriptFilePath = "/usr/local/bin/dimmer-gpio-init.sh"
	}
	if cfg.OSServicePath == "" {
		cfg.OSServicePath = "/etc/systemd/system/dimmer-gpio-init.service"
	}
	if cfg.MainServicePath == "" {
		cfg.MainServicePath = "/etc/systemd/system/dimmer-controller.service"
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// TriacPins returns the output pin of every configured light.
func (cfg *Config) TriacPins() []int {
	pins := make([]int, 0, len(cfg.Lights))
	for _, l := range cfg.Lights {
		if l.Pin != nil {
			pins = append(pins, *l.Pin)
		}
	}
	return pins
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedPins      = map[int]string{}
		usedNames     = map[string]bool{}
		conflicts     []string
	)

	claim := func(field string, pin int) {
		if other, exists := usedPins[pin]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use pin %d", field, other, pin))
			return
		}
		usedPins[pin] = field
	}

	if cfg.ZeroCrossPin == nil {
		missingFields = append(missingFields, "zero_cross_pin")
	} else {
		claim("zero_cross_pin", *cfg.ZeroCrossPin)
	}

	for i, l := range cfg.Lights {
		field := fmt.Sprintf("lights[%d]", i)
		if l.Name == "" {
			missingFields = append(missingFields, field+".name")
		} else {
			field = "lights." + l.Name
			if usedNames[l.Name] {
				conflicts = append(conflicts, fmt.Sprintf("light name %q is used twice", l.Name))
			}
			usedNames[l.Name] = true
		}
		if l.Pin == nil {
			missingFields = append(missingFields, field+".pin")
			continue
		}
		claim(field, *l.Pin)
	}

	if len(missingFields) > 0 {
		panic("Missing required config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting config: " + strings.Join(conflicts, ", "))
	}
	if len(cfg.Lights) > dimmer.Capacity {
		panic(fmt.Sprintf("Too many lights: %d configured, at most %d supported", len(cfg.Lights), dimmer.Capacity))
	}
}
