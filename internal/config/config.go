package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"rentalhub/internal/models"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Payments      PaymentsConfig      `yaml:"payments"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Rentals       RentalsConfig       `yaml:"rentals"`
	Messaging     MessagingConfig     `yaml:"messaging"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// PaymentsConfig configures the payment provider integration.
// An empty access token switches initiation into simulated mode.
type PaymentsConfig struct {
	ProviderAccessToken     string `yaml:"provider_access_token"`
	ProviderReferencePrefix string `yaml:"provider_reference_prefix"`
}

type NotificationsConfig struct {
	QueueKey         string `yaml:"queue_key"`
	SendGridAPIKey   string `yaml:"sendgrid_api_key"`
	FromEmail        string `yaml:"from_email"`
	FromName         string `yaml:"from_name"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
}

type RentalsConfig struct {
	MaxRentalDays int `yaml:"max_rental_days"`
}

type MessagingConfig struct {
	MaxLength         int `yaml:"max_length"`
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Database.Path == "" {
		result = multierror.Append(result, errors.New("database path is required"))
	}
	if c.API.Auth.JWTSecret == "" || c.API.Auth.JWTSecret == "CHANGE_ME" {
		result = multierror.Append(result, errors.New("api.auth.jwt_secret is required"))
	}
	if c.API.RateLimit.RPS < 0 || c.API.RateLimit.Burst < 0 {
		result = multierror.Append(result, errors.New("api.rate_limit values must not be negative"))
	}
	if c.Rentals.MaxRentalDays < 0 {
		result = multierror.Append(result, errors.New("rentals.max_rental_days must not be negative"))
	}
	if c.Messaging.MaxLength < 0 || c.Messaging.RateLimitMessages < 0 || c.Messaging.RateLimitWindow < 0 {
		result = multierror.Append(result, errors.New("messaging limits must not be negative"))
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		result = multierror.Append(result, errors.New("backup.storage_path is required when backups are enabled"))
	}
	if c.API.GRPC.TLS.Enabled && (c.API.GRPC.TLS.CertFile == "" || c.API.GRPC.TLS.KeyFile == "") {
		result = multierror.Append(result, errors.New("grpc tls enabled but cert_file/key_file not set"))
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 24 * time.Hour
	}
	if c.API.Auth.Issuer == "" {
		c.API.Auth.Issuer = "rentalhub"
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 0 3 * * *"
	}

	if c.Payments.ProviderReferencePrefix == "" {
		c.Payments.ProviderReferencePrefix = "MP-"
	}
	if c.Notifications.QueueKey == "" {
		c.Notifications.QueueKey = "notifications:queue"
	}
	if c.Notifications.FromName == "" {
		c.Notifications.FromName = "RentalHub"
	}

	if c.Rentals.MaxRentalDays == 0 {
		c.Rentals.MaxRentalDays = models.DefaultMaxRentalDays
	}
	if c.Messaging.MaxLength == 0 {
		c.Messaging.MaxLength = models.MaxMessageLength
	}
	if c.Messaging.RateLimitMessages == 0 {
		c.Messaging.RateLimitMessages = models.RateLimitMessages
	}
	if c.Messaging.RateLimitWindow == 0 {
		c.Messaging.RateLimitWindow = models.RateLimitWindow
	}
}
