package utils

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	OTP          OTPConfig
	Scheduler    SchedulerConfig
	Notification NotificationConfig
	Storage      StorageConfig
}

type AppConfig struct {
	Name             string
	Port             string
	Debug            bool
	LogPath          string
	MagicLinkBaseURL string
	AllowedOrigins   []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	Migrate  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OTPConfig struct {
	ExpiryMinutes int
	Length        int
	MaxAttempts   int
}

type SchedulerConfig struct {
	Key            string
	PollIntervalMS int
	BatchSize      int
	LeaseMS        int
	RetryMS        int
}

type NotificationConfig struct {
	Driver      string
	Brokers     []string
	TopicPrefix string
	EmailFrom   string
}

type StorageConfig struct {
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	MaxUploadMB int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "account-service")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("MAGIC_LINK_BASE_URL", "http://localhost:8080/api/auth/login-with-magic-link")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATE", true)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("OTP_EXPIRY_MINUTES", 5)
	viper.SetDefault("OTP_LENGTH", 6)
	viper.SetDefault("OTP_MAX_ATTEMPTS", 10)
	viper.SetDefault("SCHEDULER_KEY", "tasks:delayed")
	viper.SetDefault("SCHEDULER_POLL_MS", 500)
	viper.SetDefault("SCHEDULER_BATCH", 100)
	viper.SetDefault("SCHEDULER_LEASE_MS", 30000)
	viper.SetDefault("SCHEDULER_RETRY_MS", 1000)
	viper.SetDefault("NOTIFY_DRIVER", "log")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC_PREFIX", "accounts")
	viper.SetDefault("EMAIL_FROM", "no-reply@accounts.local")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_BUCKET", "identity-documents")
	viper.SetDefault("MAX_UPLOAD_MB", 10)

	// .env is optional in containers, environment wins either way
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:             viper.GetString("APP_NAME"),
			Port:             viper.GetString("PORT"),
			Debug:            viper.GetBool("DEBUG"),
			LogPath:          viper.GetString("LOG_PATH"),
			MagicLinkBaseURL: viper.GetString("MAGIC_LINK_BASE_URL"),
			AllowedOrigins:   splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
			Migrate:  viper.GetBool("DB_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		OTP: OTPConfig{
			ExpiryMinutes: viper.GetInt("OTP_EXPIRY_MINUTES"),
			Length:        viper.GetInt("OTP_LENGTH"),
			MaxAttempts:   viper.GetInt("OTP_MAX_ATTEMPTS"),
		},
		Scheduler: SchedulerConfig{
			Key:            viper.GetString("SCHEDULER_KEY"),
			PollIntervalMS: viper.GetInt("SCHEDULER_POLL_MS"),
			BatchSize:      viper.GetInt("SCHEDULER_BATCH"),
			LeaseMS:        viper.GetInt("SCHEDULER_LEASE_MS"),
			RetryMS:        viper.GetInt("SCHEDULER_RETRY_MS"),
		},
		Notification: NotificationConfig{
			Driver:      strings.ToLower(viper.GetString("NOTIFY_DRIVER")),
			Brokers:     splitList(viper.GetString("KAFKA_BROKERS")),
			TopicPrefix: viper.GetString("KAFKA_TOPIC_PREFIX"),
			EmailFrom:   viper.GetString("EMAIL_FROM"),
		},
		Storage: StorageConfig{
			Endpoint:    viper.GetString("S3_ENDPOINT"),
			Region:      viper.GetString("S3_REGION"),
			AccessKey:   viper.GetString("S3_ACCESS_KEY"),
			SecretKey:   viper.GetString("S3_SECRET_KEY"),
			Bucket:      viper.GetString("S3_BUCKET"),
			MaxUploadMB: viper.GetInt("MAX_UPLOAD_MB"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the service cannot run with, including a code
// space too small for the collision retry budget.
func (c *Config) Validate() error {
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTP.Length)
	}
	if math.Pow10(c.OTP.Length) < 1e6 && c.OTP.MaxAttempts < 20 {
		return fmt.Errorf("OTP_LENGTH %d needs OTP_MAX_ATTEMPTS >= 20", c.OTP.Length)
	}
	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.OTP.ExpiryMinutes < 1 {
		return fmt.Errorf("OTP_EXPIRY_MINUTES must be positive")
	}
	switch c.Notification.Driver {
	case "log", "kafka":
	default:
		return fmt.Errorf("unknown NOTIFY_DRIVER %q", c.Notification.Driver)
	}
	if c.Notification.Driver == "kafka" && len(c.Notification.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required for the kafka driver")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
