package config

// Config mirrors gohome.config.v1.Config.
type Config struct {
	SchemaVersion int32           `json:"schema_version,omitempty"`
	Core          *CoreConfig     `json:"core,omitempty"`
	Logging       *LoggingConfig  `json:"logging,omitempty"`
	Storage       *StorageConfig  `json:"storage,omitempty"`
	MQTT          *MQTTConfig     `json:"mqtt,omitempty"`
	InfluxDB      *InfluxDBConfig `json:"influxdb,omitempty"`
	Daikin        *DaikinConfig   `json:"daikin,omitempty"`
}

type CoreConfig struct {
	GRPCAddr         string `json:"grpc_addr,omitempty"`
	HTTPAddr         string `json:"http_addr,omitempty"`
	DashboardDir     string `json:"dashboard_dir,omitempty"`
	EnableAllPlugins bool   `json:"enable_all_plugins,omitempty"`
}

type LoggingConfig struct {
	Level      string `json:"level,omitempty"`
	Format     string `json:"format,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int32  `json:"max_size_mb,omitempty"`
	MaxBackups int32  `json:"max_backups,omitempty"`
	MaxAgeDays int32  `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path,omitempty"`
}

type MQTTConfig struct {
	Broker          string `json:"broker,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	Username        string `json:"username,omitempty"`
	PasswordFile    string `json:"password_file,omitempty"`
	TopicPrefix     string `json:"topic_prefix,omitempty"`
	DiscoveryPrefix string `json:"discovery_prefix,omitempty"`
	QoS             int32  `json:"qos,omitempty"`
}

type InfluxDBConfig struct {
	URL                  string `json:"url,omitempty"`
	TokenFile            string `json:"token_file,omitempty"`
	Org                  string `json:"org,omitempty"`
	Bucket               string `json:"bucket,omitempty"`
	BatchSize            int32  `json:"batch_size,omitempty"`
	FlushIntervalSeconds int32  `json:"flush_interval_seconds,omitempty"`
}

type DaikinConfig struct {
	Units                 []*DaikinUnitConfig `json:"units,omitempty"`
	PollIntervalSeconds   int32               `json:"poll_interval_seconds,omitempty"`
	RequestTimeoutSeconds int32               `json:"request_timeout_seconds,omitempty"`
	MaxRequestsPerMinute  int32               `json:"max_requests_per_minute,omitempty"`
}

type DaikinUnitConfig struct {
	Host string `json:"host,omitempty"`
	Name string `json:"name,omitempty"`
}
