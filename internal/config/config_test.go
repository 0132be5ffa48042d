package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
schema_version: 1
core {
  grpc_addr: "127.0.0.1:9100"
}
logging {
  level: "debug"
  format: "text"
}
mqtt {
  broker: "tcp://broker:1883"
}
daikin {
  units { host: "192.168.1.40" name: "House" }
  units { host: "192.168.1.41" }
}
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.pbtxt")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Core.GRPCAddr != "127.0.0.1:9100" {
		t.Fatalf("unexpected grpc addr: %s", cfg.Core.GRPCAddr)
	}
	if cfg.Core.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("expected default http addr, got %s", cfg.Core.HTTPAddr)
	}
	if cfg.Storage.Path != DefaultStoragePath {
		t.Fatalf("expected default storage path, got %s", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.MQTT.TopicPrefix != DefaultMQTTTopicPrefix || cfg.MQTT.DiscoveryPrefix != DefaultMQTTDiscoveryPrefix {
		t.Fatalf("unexpected mqtt defaults: %+v", cfg.MQTT)
	}
	if len(cfg.Daikin.Units) != 2 {
		t.Fatalf("expected 2 daikin units, got %d", len(cfg.Daikin.Units))
	}
	if cfg.Daikin.Units[0].Name != "House" {
		t.Fatalf("unexpected unit name: %s", cfg.Daikin.Units[0].Name)
	}
	if cfg.Daikin.PollIntervalSeconds != DefaultDaikinPollSeconds {
		t.Fatalf("expected default poll interval, got %d", cfg.Daikin.PollIntervalSeconds)
	}

	enabled := EnabledPlugins(cfg)
	if !enabled["daikin"] || len(enabled) != 1 {
		t.Fatalf("unexpected enabled plugins: %v", enabled)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"schema version":   `schema_version: 2`,
		"missing host":     "schema_version: 1\ndaikin { units { name: \"x\" } }",
		"duplicate host":   "schema_version: 1\ndaikin { units { host: \"a\" } units { host: \"a\" } }",
		"no units":         "schema_version: 1\ndaikin { poll_interval_seconds: 30 }",
		"mqtt broker":      "schema_version: 1\nmqtt { topic_prefix: \"x\" }",
		"influx bucket":    "schema_version: 1\ninfluxdb { url: \"http://x\" org: \"o\" }",
		"log format":       "schema_version: 1\nlogging { format: \"xml\" }",
		"poll too fast":    "schema_version: 1\ndaikin { units { host: \"a\" } poll_interval_seconds: 1 }",
		"unknown field":    "schema_version: 1\nbogus: true",
		"bad mqtt quality": "schema_version: 1\nmqtt { broker: \"tcp://x:1883\" qos: 3 }",
	}

	for name, input := range cases {
		if _, err := Parse([]byte(input)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestReadSecretTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  token\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	got, err := ReadSecret(path)
	if err != nil {
		t.Fatalf("ReadSecret error: %v", err)
	}
	if got != "token" {
		t.Fatalf("unexpected secret %q", got)
	}
	if got, _ := ReadSecret(""); got != "" {
		t.Fatalf("expected empty secret for empty path")
	}
}
