package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresPropsPath(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "props.path is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "props:\n  path: /tmp/props.yaml\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DeviceID == "" {
		t.Fatalf("expected device id default")
	}
	if cfg.GPS.Source != "nmea" || cfg.GPS.Baud != 9600 {
		t.Fatalf("gps source=%q baud=%d", cfg.GPS.Source, cfg.GPS.Baud)
	}
	if cfg.GPS.ReadTimeout != 15*time.Second || cfg.GPS.WatchdogTimeout != 14*time.Second {
		t.Fatalf("read_timeout=%s watchdog_timeout=%s", cfg.GPS.ReadTimeout, cfg.GPS.WatchdogTimeout)
	}
	if cfg.GPS.WatchdogInterval != 2*time.Second || cfg.GPS.ErrorDelay != 5*time.Second ||
		cfg.GPS.OpenDelay != 4*time.Second || cfg.GPS.RestartDelay != 3*time.Second {
		t.Fatalf("unexpected gps delays: %+v", cfg.GPS)
	}
	if cfg.Tracker.PollInterval != time.Second {
		t.Fatalf("poll_interval=%s want 1s", cfg.Tracker.PollInterval)
	}
	if cfg.Events.Sink != "log" || cfg.Events.QueueSize != 256 {
		t.Fatalf("events=%+v", cfg.Events)
	}
	if cfg.HTTP.Addr != "" || cfg.HTTP.LogLines != 2000 {
		t.Fatalf("http=%+v", cfg.HTTP)
	}
	if cfg.GPS.Replay.Speed != 1 {
		t.Fatalf("replay speed=%v want 1", cfg.GPS.Replay.Speed)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "bad source",
			extra: "gps:\n  source: bluetooth\n",
			want:  "gps.source must be one of nmea, tcp, gpsd, sim, replay",
		},
		{
			name:  "tcp needs addr",
			extra: "gps:\n  source: tcp\n",
			want:  "gps.addr is required when gps.source is 'tcp'",
		},
		{
			name:  "bad sink",
			extra: "events:\n  sink: kafka\n",
			want:  "events.sink must be one of log, mqtt, udp",
		},
		{
			name:  "udp needs dest",
			extra: "events:\n  sink: udp\n",
			want:  "udp.dest is required when events.sink is 'udp'",
		},
		{
			name:  "replay needs path",
			extra: "gps:\n  source: replay\n",
			want:  "gps.replay.path is required when gps.source is 'replay'",
		},
		{
			name:  "negative replay speed",
			extra: "gps:\n  replay:\n    speed: -2\n",
			want:  "gps.replay.speed must be > 0",
		},
		{
			name:  "negative queue",
			extra: "events:\n  queue_size: -1\n",
			want:  "events.queue_size must be > 0",
		},
		{
			name:  "mqtt needs broker",
			extra: "events:\n  sink: mqtt\n",
			want:  "mqtt.broker is required when events.sink is 'mqtt'",
		},
		{
			name:  "mqtt qos",
			extra: "events:\n  sink: mqtt\nmqtt:\n  broker: tcp://localhost:1883\n  qos: 3\n",
			want:  "mqtt.qos must be 0, 1 or 2",
		},
		{
			name:  "negative location interval",
			extra: "tracker:\n  location_interval: -1s\n",
			want:  "tracker.location_interval must be >= 0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, "props:\n  path: /tmp/props.yaml\n"+tc.extra)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MQTTDefaultsFromDeviceID(t *testing.T) {
	path := writeTempConfig(t, `
device_id: truck-42
props:
  path: /tmp/props.yaml
events:
  sink: mqtt
mqtt:
  broker: tcp://localhost:1883
  qos: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MQTT.Topic != "fleettrack/truck-42/events" {
		t.Fatalf("topic=%q", cfg.MQTT.Topic)
	}
	if cfg.MQTT.ClientID != "fleettrack-truck-42" {
		t.Fatalf("client_id=%q", cfg.MQTT.ClientID)
	}
	if cfg.MQTT.Timeout != 5*time.Second {
		t.Fatalf("timeout=%s", cfg.MQTT.Timeout)
	}
}

func TestLoad_SimAndPropsDefaults(t *testing.T) {
	path := writeTempConfig(t, `
gps:
  enable: true
  source: SIM
  sim:
    center_lat: 45.5
    center_lon: -122.6
    lap: 5m
    park_for: 2m
props:
  path: /tmp/props.yaml
  defaults:
    motion.start: "10"
    odom.delta: "250"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "sim" {
		t.Fatalf("source=%q want sim", cfg.GPS.Source)
	}
	if cfg.GPS.Sim.CenterLat != 45.5 || cfg.GPS.Sim.Lap != 5*time.Minute || cfg.GPS.Sim.ParkFor != 2*time.Minute {
		t.Fatalf("sim=%+v", cfg.GPS.Sim)
	}
	if cfg.Props.Defaults["motion.start"] != "10" || cfg.Props.Defaults["odom.delta"] != "250" {
		t.Fatalf("defaults=%v", cfg.Props.Defaults)
	}
}

func TestLoad_ReplayRecordAndHTTP(t *testing.T) {
	path := writeTempConfig(t, `
gps:
  enable: true
  source: replay
  replay:
    path: /var/lib/fleettrack/drive.log
    speed: 4
  record: /tmp/capture.log
props:
  path: /tmp/props.yaml
events:
  sink: udp
udp:
  dest: 10.0.0.5:5005
http:
  addr: 127.0.0.1:8080
  log_lines: 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Replay.Path != "/var/lib/fleettrack/drive.log" || cfg.GPS.Replay.Speed != 4 || cfg.GPS.Record != "/tmp/capture.log" {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
	if cfg.Events.Sink != "udp" || cfg.UDP.Dest != "10.0.0.5:5005" {
		t.Fatalf("events=%+v udp=%+v", cfg.Events, cfg.UDP)
	}
	if cfg.HTTP.Addr != "127.0.0.1:8080" || cfg.HTTP.LogLines != 500 {
		t.Fatalf("http=%+v", cfg.HTTP)
	}
}
