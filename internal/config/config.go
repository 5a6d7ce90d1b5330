package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fleettrack/internal/sim"
)

type Config struct {
	// DeviceID identifies this vehicle in published events.
	DeviceID string        `yaml:"device_id"`
	GPS      GPSConfig     `yaml:"gps"`
	Props    PropsConfig   `yaml:"props"`
	Tracker  TrackerConfig `yaml:"tracker"`
	Events   EventsConfig  `yaml:"events"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	UDP      UDPConfig     `yaml:"udp"`
	HTTP     HTTPConfig    `yaml:"http"`
}

type GPSConfig struct {
	Enable   bool   `yaml:"enable"`
	Source   string `yaml:"source"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
	Addr     string `yaml:"addr"`
	Provider string `yaml:"provider"`

	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WatchdogTimeout  time.Duration `yaml:"watchdog_timeout"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`
	ErrorDelay       time.Duration `yaml:"error_delay"`
	OpenDelay        time.Duration `yaml:"open_delay"`
	RestartDelay     time.Duration `yaml:"restart_delay"`

	Sim      sim.Vehicle `yaml:"sim"`
	SimRoute string      `yaml:"sim_route"`

	Replay ReplayConfig `yaml:"replay"`
	// Record captures every device line to this file.
	Record string `yaml:"record"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
}

type PropsConfig struct {
	Path string `yaml:"path"`
	// Defaults seed properties that are missing from the file.
	Defaults map[string]string `yaml:"defaults"`
}

type TrackerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	LocationInterval time.Duration `yaml:"location_interval"`
	ElapsedLimit     time.Duration `yaml:"elapsed_limit"`
}

type EventsConfig struct {
	// Sink is "log", "mqtt" or "udp".
	Sink           string        `yaml:"sink"`
	QueueSize      int           `yaml:"queue_size"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	QoS      int           `yaml:"qos"`
	Retained bool          `yaml:"retained"`
	Timeout  time.Duration `yaml:"timeout"`
}

type UDPConfig struct {
	// Dest is host:port for events.sink "udp".
	Dest string `yaml:"dest"`
}

type HTTPConfig struct {
	// Addr serves /metrics and the /api endpoints; empty disables.
	Addr string `yaml:"addr"`
	// LogLines is how many recent log lines /api/logs keeps.
	LogLines int `yaml:"log_lines"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.DeviceID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			cfg.DeviceID = host
		} else {
			cfg.DeviceID = "fleettrack"
		}
	}

	cfg.GPS.Source = strings.ToLower(strings.TrimSpace(cfg.GPS.Source))
	if cfg.GPS.Source == "" {
		cfg.GPS.Source = "nmea"
	}
	switch cfg.GPS.Source {
	case "nmea", "tcp", "gpsd", "sim", "replay":
	default:
		return Config{}, fmt.Errorf("gps.source must be one of nmea, tcp, gpsd, sim, replay")
	}
	if cfg.GPS.Source == "replay" && strings.TrimSpace(cfg.GPS.Replay.Path) == "" {
		return Config{}, fmt.Errorf("gps.replay.path is required when gps.source is 'replay'")
	}
	if cfg.GPS.Replay.Speed == 0 {
		cfg.GPS.Replay.Speed = 1
	}
	if cfg.GPS.Replay.Speed < 0 {
		return Config{}, fmt.Errorf("gps.replay.speed must be > 0")
	}
	if cfg.GPS.Source == "tcp" && strings.TrimSpace(cfg.GPS.Addr) == "" {
		return Config{}, fmt.Errorf("gps.addr is required when gps.source is 'tcp'")
	}
	if cfg.GPS.Source == "nmea" && cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 9600
	}
	if cfg.GPS.Baud < 0 {
		return Config{}, fmt.Errorf("gps.baud must be > 0")
	}
	if cfg.GPS.ReadTimeout <= 0 {
		cfg.GPS.ReadTimeout = 15 * time.Second
	}
	if cfg.GPS.WatchdogTimeout <= 0 {
		cfg.GPS.WatchdogTimeout = 14 * time.Second
	}
	if cfg.GPS.WatchdogInterval <= 0 {
		cfg.GPS.WatchdogInterval = 2 * time.Second
	}
	if cfg.GPS.ErrorDelay <= 0 {
		cfg.GPS.ErrorDelay = 5 * time.Second
	}
	if cfg.GPS.OpenDelay <= 0 {
		cfg.GPS.OpenDelay = 4 * time.Second
	}
	if cfg.GPS.RestartDelay <= 0 {
		cfg.GPS.RestartDelay = 3 * time.Second
	}

	if strings.TrimSpace(cfg.Props.Path) == "" {
		return Config{}, fmt.Errorf("props.path is required")
	}

	if cfg.Tracker.PollInterval <= 0 {
		cfg.Tracker.PollInterval = 1 * time.Second
	}
	if cfg.Tracker.LocationInterval < 0 {
		return Config{}, fmt.Errorf("tracker.location_interval must be >= 0")
	}
	if cfg.Tracker.ElapsedLimit < 0 {
		return Config{}, fmt.Errorf("tracker.elapsed_limit must be >= 0")
	}

	cfg.Events.Sink = strings.ToLower(strings.TrimSpace(cfg.Events.Sink))
	if cfg.Events.Sink == "" {
		cfg.Events.Sink = "log"
	}
	switch cfg.Events.Sink {
	case "log", "mqtt", "udp":
	default:
		return Config{}, fmt.Errorf("events.sink must be one of log, mqtt, udp")
	}
	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = 256
	}
	if cfg.Events.QueueSize < 0 {
		return Config{}, fmt.Errorf("events.queue_size must be > 0")
	}
	if cfg.Events.BackoffInitial <= 0 {
		cfg.Events.BackoffInitial = 1 * time.Second
	}
	if cfg.Events.BackoffMax <= 0 {
		cfg.Events.BackoffMax = 1 * time.Minute
	}

	if cfg.Events.Sink == "mqtt" {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return Config{}, fmt.Errorf("mqtt.broker is required when events.sink is 'mqtt'")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return Config{}, fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "fleettrack/" + cfg.DeviceID + "/events"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "fleettrack-" + cfg.DeviceID
		}
		if cfg.MQTT.Timeout <= 0 {
			cfg.MQTT.Timeout = 5 * time.Second
		}
	}

	if cfg.Events.Sink == "udp" && strings.TrimSpace(cfg.UDP.Dest) == "" {
		return Config{}, fmt.Errorf("udp.dest is required when events.sink is 'udp'")
	}

	if cfg.HTTP.LogLines == 0 {
		cfg.HTTP.LogLines = 2000
	}
	if cfg.HTTP.LogLines < 0 {
		return Config{}, fmt.Errorf("http.log_lines must be > 0")
	}

	return cfg, nil
}
