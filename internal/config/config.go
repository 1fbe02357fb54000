package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Removal    RemovalConfig    `mapstructure:"removal"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	Mode               string `mapstructure:"mode"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
}

type FetchConfig struct {
	TimeoutSec     int    `mapstructure:"timeout_sec"`
	MaxImageSizeMB int    `mapstructure:"max_image_size_mb"`
	UserAgent      string `mapstructure:"user_agent"`
}

type RemovalConfig struct {
	Mode        string `mapstructure:"mode"`
	ResultMode  string `mapstructure:"result_mode"`
	APIKey      string `mapstructure:"api_key"`
	ClientAppID string `mapstructure:"client_app_id"`
	Endpoint    string `mapstructure:"endpoint"`
	TimeoutSec  int    `mapstructure:"timeout_sec"`
}

type ProcessingConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	LocalPath     string `mapstructure:"local_path"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	JWTAlgorithm     string `mapstructure:"jwt_algorithm"`
	ExpectedAudience string `mapstructure:"expected_audience"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	Slaves               string `mapstructure:"slaves"`
	MaxOpenConns         int    `mapstructure:"max_open_conns"`
	MaxIdleConns         int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec   int    `mapstructure:"conn_max_lifetime_sec"`
	ConnectRetries       int    `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int    `mapstructure:"connect_retry_delay_sec"`
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type WorkerConfig struct {
	JobTimeoutSec int    `mapstructure:"job_timeout_sec"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	setDefaults(cfg)

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("removal_mode", appConfig.Removal.Mode).
		Str("result_mode", appConfig.Removal.ResultMode).
		Str("storage_type", appConfig.Storage.Type).
		Str("bucket", appConfig.Storage.Bucket).
		Msg("Config loaded successfully via wbf")

	return appConfig, nil
}

func setDefaults(cfg *config.Config) {
	cfg.SetDefault("server.mode", "release")
	cfg.SetDefault("fetch.timeout_sec", 30)
	cfg.SetDefault("fetch.max_image_size_mb", 25)
	cfg.SetDefault("removal.mode", string(RemovalModeDemo))
	cfg.SetDefault("removal.result_mode", string(ResultModeImageShadow))
	cfg.SetDefault("removal.client_app_id", "sample")
	cfg.SetDefault("removal.timeout_sec", 60)
	cfg.SetDefault("processing.max_concurrent", 4)
	cfg.SetDefault("auth.jwt_algorithm", "HS256")
	cfg.SetDefault("worker.job_timeout_sec", 180)
	cfg.SetDefault("logging.level", "info")
}

func validateConfig(cfg *Config) error {
	// Server
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}

	// Fetch
	if cfg.Fetch.TimeoutSec <= 0 {
		return fmt.Errorf("fetch.timeout_sec must be positive")
	}
	if cfg.Fetch.MaxImageSizeMB <= 0 {
		return fmt.Errorf("fetch.max_image_size_mb must be positive")
	}

	// Removal
	if _, err := cfg.Removal.Profile(); err != nil {
		return err
	}
	if cfg.Removal.TimeoutSec <= 0 {
		return fmt.Errorf("removal.timeout_sec must be positive")
	}

	// Processing
	if cfg.Processing.MaxConcurrent <= 0 {
		return fmt.Errorf("processing.max_concurrent must be positive")
	}

	// Storage
	if cfg.Storage.Type != "local" && cfg.Storage.Type != "s3" {
		return fmt.Errorf("storage.type must be 'local' or 's3'")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if cfg.Storage.PublicBaseURL == "" {
		return fmt.Errorf("storage.public_base_url is required")
	}
	if cfg.Storage.Type == "local" && cfg.Storage.LocalPath == "" {
		return fmt.Errorf("storage.local_path is required for local storage")
	}
	if cfg.Storage.Type == "s3" {
		if cfg.Storage.S3Endpoint == "" {
			return fmt.Errorf("storage.s3_endpoint is required for s3 storage")
		}
		if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required for s3 storage")
		}
	}

	// Auth
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	switch strings.ToUpper(cfg.Auth.JWTAlgorithm) {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("auth.jwt_algorithm must be one of HS256, HS384, HS512")
	}
	if cfg.Auth.ExpectedAudience == "" {
		return fmt.Errorf("auth.expected_audience is required")
	}

	// Database
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be non-negative")
	}

	// Migrations
	if cfg.Migrations.Path == "" {
		return fmt.Errorf("migrations.path is required")
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if cfg.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}

	// Worker
	if cfg.Worker.JobTimeoutSec <= 0 {
		return fmt.Errorf("worker.job_timeout_sec must be positive")
	}

	if cfg.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	return nil
}
