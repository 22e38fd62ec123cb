package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// DatabaseConfig ANAM case database connection
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxConns     int
	ProbeTimeout time.Duration
}

// GetDSN returns the lib/pq connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Identity names the store without credentials (used for run locks and logs)
func (c *DatabaseConfig) Identity() string {
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
}

// RedisConfig optional Redis used for the run lock and progress stream
type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	LockTTL        time.Duration
	ProgressStream string
}

// MQTTConfig optional MQTT progress publishing
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// StoreConfig dataset service (anam-receiver)
type StoreConfig struct {
	URL          string
	Token        string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	RetryCount   int
}

// ShareConfig photo share parameters. Only carried, photo mirroring lives elsewhere.
type ShareConfig struct {
	Address  string
	Username string
	Password string
	Share    string
}

// ImportConfig batch import behaviour
type ImportConfig struct {
	CheckpointEvery int
	CreatedBy       string
	OgdID           int
	LocationsFile   string
	ReportDir       string
}

// Config anam-importer configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Store    StoreConfig
	Share    ShareConfig
	Import   ImportConfig
	Log      struct {
		Level  string
		Format string
		File   string
	}
}

// settingsFile mirrors the desktop settings file (JSON, YAML accepted too)
type settingsFile struct {
	PicservIP       *string `yaml:"picserv_ip"`
	PicservUsername *string `yaml:"picserv_username"`
	PicservPassword *string `yaml:"picserv_password"`
	PicservShare    *string `yaml:"picserv_share"`

	DBServerIP *string `yaml:"db_serverip"`
	DBPort     *int    `yaml:"db_port"`
	DBUsername *string `yaml:"db_username"`
	DBPassword *string `yaml:"db_password"`
	DBSid      *string `yaml:"db_sid"`

	StoreURL   *string `yaml:"store_url"`
	StoreToken *string `yaml:"store_token"`

	CheckpointEvery *int    `yaml:"checkpoint_every"`
	LocationsFile   *string `yaml:"locations_file"`
	ReportDir       *string `yaml:"report_dir"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	cfg := &Config{}
	cfg.Database.Host = "192.168.1.11"
	cfg.Database.Port = 5432
	cfg.Database.User = "anam"
	cfg.Database.Database = "anam"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 2
	cfg.Database.ProbeTimeout = 3 * time.Second

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LockTTL = 2 * time.Hour
	cfg.Redis.ProgressStream = "anam:import:progress"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "anam-importer"
	cfg.MQTT.Topic = "anam/import/progress"

	cfg.Store.URL = "http://192.168.1.10:8080"
	cfg.Store.Timeout = 30 * time.Second
	cfg.Store.ProbeTimeout = 2 * time.Second
	cfg.Store.RetryCount = 0

	cfg.Share.Address = "192.168.1.10"

	cfg.Import.CheckpointEvery = 50
	cfg.Import.CreatedBy = "HAMEDCOLLECT"
	cfg.Import.OgdID = 40
	cfg.Import.LocationsFile = "locations.yaml"

	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// Load builds the configuration: defaults, then the settings file at path
// (ignored when absent), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := cfg.applySettingsFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the import cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database host is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("database name is required"))
	}
	if c.Store.URL == "" {
		errs = append(errs, errors.New("store url is required"))
	}
	if c.Import.CheckpointEvery <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint interval must be positive, got %d", c.Import.CheckpointEvery))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis address is required when redis is enabled"))
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		errs = append(errs, errors.New("mqtt broker and topic are required when mqtt is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) applySettingsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var s settingsFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	setString(&c.Share.Address, s.PicservIP)
	setString(&c.Share.Username, s.PicservUsername)
	setString(&c.Share.Password, s.PicservPassword)
	setString(&c.Share.Share, s.PicservShare)

	setString(&c.Database.Host, s.DBServerIP)
	setInt(&c.Database.Port, s.DBPort)
	setString(&c.Database.User, s.DBUsername)
	setString(&c.Database.Password, s.DBPassword)
	setString(&c.Database.Database, s.DBSid)

	setString(&c.Store.URL, s.StoreURL)
	setString(&c.Store.Token, s.StoreToken)

	setInt(&c.Import.CheckpointEvery, s.CheckpointEvery)
	setString(&c.Import.LocationsFile, s.LocationsFile)
	setString(&c.Import.ReportDir, s.ReportDir)
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = parseInt(getEnv("DB_PORT", ""), c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.ProbeTimeout = parseDuration(getEnv("DB_PROBE_TIMEOUT", ""), c.Database.ProbeTimeout)

	c.Redis.Enabled = getEnv("REDIS_ENABLED", strconv.FormatBool(c.Redis.Enabled)) == "true"
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = parseInt(getEnv("REDIS_DB", ""), c.Redis.DB)
	c.Redis.ProgressStream = getEnv("REDIS_PROGRESS_STREAM", c.Redis.ProgressStream)

	c.MQTT.Enabled = getEnv("MQTT_ENABLED", strconv.FormatBool(c.MQTT.Enabled)) == "true"
	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.Topic = getEnv("MQTT_TOPIC", c.MQTT.Topic)

	c.Store.URL = getEnv("STORE_URL", c.Store.URL)
	c.Store.Token = getEnv("STORE_TOKEN", c.Store.Token)
	c.Store.Timeout = parseDuration(getEnv("STORE_TIMEOUT", ""), c.Store.Timeout)

	c.Import.CheckpointEvery = parseInt(getEnv("IMPORT_CHECKPOINT_EVERY", ""), c.Import.CheckpointEvery)
	c.Import.LocationsFile = getEnv("LOCATIONS_FILE", c.Import.LocationsFile)
	c.Import.ReportDir = getEnv("REPORT_DIR", c.Import.ReportDir)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
