package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Model    ModelConfig    `mapstructure:"model"`
}

// HTTPConfig carries the API listener settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig carries the Postgres connection settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MQTTConfig carries the broker connection settings.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
}

// IngestConfig tunes the consumer worker pool.
type IngestConfig struct {
	Group   string `mapstructure:"group"`
	Workers int    `mapstructure:"workers"`
	Buffer  int    `mapstructure:"buffer"`
}

// UpstreamConfig points at the optional upstream event stream.
type UpstreamConfig struct {
	URL        string        `mapstructure:"url"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ModelConfig locates the model and codec artifacts.
type ModelConfig struct {
	Path      string `mapstructure:"path"`
	Version   string `mapstructure:"version"`
	CodecPath string `mapstructure:"codec_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("mqtt.topic", "sensor-data")
	v.SetDefault("ingest.group", "intervention-group")
	v.SetDefault("ingest.workers", 2)
	v.SetDefault("ingest.buffer", 256)
	v.SetDefault("upstream.retry_delay", 5*time.Second)
	v.SetDefault("model.path", "models/lightgbm_v1.txt")
	v.SetDefault("model.version", "v1.0-production")
}

// Load reads the configuration file at path. Environment variables
// DATABASE_URL and PG_DSN override the database DSN, in that order.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := v.BindEnv("database.dsn", "DATABASE_URL", "PG_DSN"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("config: database.dsn is required (or set DATABASE_URL)")
	}
	if cfg.MQTT.Broker == "" {
		return nil, fmt.Errorf("config: mqtt.broker is required")
	}
	return &cfg, nil
}

// Watch logs configuration file changes. Connection settings cannot be
// re-applied to live broker and database sessions, so a change only logs
// that a restart is required.
func Watch(path string, logger *log.Logger) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolve %s: %w", path, err)
	}
	if logger == nil {
		logger = log.Default()
	}

	v := viper.New()
	v.SetConfigFile(absPath)
	v.SetConfigType("yaml")

	var lastChange time.Time
	const debounce = 2 * time.Second

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write {
			return
		}
		now := time.Now()
		if now.Sub(lastChange) < debounce {
			return
		}
		lastChange = now
		logger.Printf("config: %s changed, restart required to apply", e.Name)
	})
	v.WatchConfig()
	return nil
}
