package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/barneyonline/core/internal/schema"
)

const (
	SchemaVersion              = 1
	DefaultPath                = "/etc/gohome/config.pbtxt"
	DefaultGRPCAddr            = "0.0.0.0:9000"
	DefaultHTTPAddr            = "0.0.0.0:8080"
	DefaultDashboardDir        = "/var/lib/gohome/dashboards"
	DefaultStoragePath         = "/var/lib/gohome/registry.db"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultMQTTTopicPrefix     = "gohome"
	DefaultMQTTDiscoveryPrefix = "homeassistant"
	DefaultMQTTClientID        = "gohome"
	DefaultDaikinPollSeconds   = 60
	DefaultDaikinTimeout       = 10
	DefaultDaikinRequestBudget = 120
)

// Load parses the textproto config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes textproto config bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	msg, err := schema.NewMessage(schema.ConfigMessage)
	if err != nil {
		return nil, err
	}
	if err := prototext.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	raw, err := (protojson.MarshalOptions{UseProtoNames: true}).Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Core == nil {
		cfg.Core = &CoreConfig{}
	}
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DashboardDir == "" {
		cfg.Core.DashboardDir = DefaultDashboardDir
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}

	if cfg.MQTT != nil {
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
		}
		if cfg.MQTT.DiscoveryPrefix == "" {
			cfg.MQTT.DiscoveryPrefix = DefaultMQTTDiscoveryPrefix
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = DefaultMQTTClientID
		}
	}

	if cfg.Daikin != nil {
		if cfg.Daikin.PollIntervalSeconds == 0 {
			cfg.Daikin.PollIntervalSeconds = DefaultDaikinPollSeconds
		}
		if cfg.Daikin.RequestTimeoutSeconds == 0 {
			cfg.Daikin.RequestTimeoutSeconds = DefaultDaikinTimeout
		}
		if cfg.Daikin.MaxRequestsPerMinute == 0 {
			cfg.Daikin.MaxRequestsPerMinute = DefaultDaikinRequestBudget
		}
	}
}

// Validate enforces required invariants beyond proto typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}

	if cfg.Core == nil {
		return fmt.Errorf("core config is required")
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}

	if cfg.Logging != nil {
		switch strings.ToLower(cfg.Logging.Format) {
		case "", "json", "text":
		default:
			return fmt.Errorf("logging.format must be json or text")
		}
	}

	if cfg.MQTT != nil {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	if cfg.InfluxDB != nil {
		if cfg.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required")
		}
		if cfg.InfluxDB.Org == "" {
			return fmt.Errorf("influxdb.org is required")
		}
		if cfg.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.bucket is required")
		}
	}

	if cfg.Daikin != nil {
		if len(cfg.Daikin.Units) == 0 {
			return fmt.Errorf("daikin.units is required")
		}
		seen := make(map[string]bool)
		for i, unit := range cfg.Daikin.Units {
			if unit == nil || strings.TrimSpace(unit.Host) == "" {
				return fmt.Errorf("daikin.units[%d].host is required", i)
			}
			if seen[unit.Host] {
				return fmt.Errorf("duplicate daikin unit host: %s", unit.Host)
			}
			seen[unit.Host] = true
		}
		if cfg.Daikin.PollIntervalSeconds < 5 {
			return fmt.Errorf("daikin.poll_interval_seconds must be at least 5")
		}
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.Daikin != nil {
		enabled["daikin"] = true
	}
	return enabled
}

// ReadSecret reads a secret file and trims surrounding whitespace.
func ReadSecret(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
