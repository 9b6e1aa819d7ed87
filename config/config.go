package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath       = "config/config.yml"
	DefaultIngestionTimeout = 30 * time.Second
)

type Config struct {
	Signalbot SignalbotConfig `yaml:"signalbot"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type SignalbotConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// TelegramConfig selects the bot credentials and the single channel whose posts
// are processed. ChannelID is compared as a string against the chat id of each
// update, e.g. "-1001234567890".
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	ChannelID   string        `yaml:"channel_id"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
	APIEndpoint string        `yaml:"api_endpoint"`
}

type IngestionConfig struct {
	URL               string        `yaml:"url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
}

type PipelineConfig struct {
	Workers int `yaml:"workers"`
	Buffer  int `yaml:"buffer"`
}

type MetricsConfig struct {
	ReportInterval time.Duration    `yaml:"report_interval"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type ArchiveConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Prefix          string        `yaml:"prefix"`
	Endpoint        string        `yaml:"endpoint"`
	PathStyle       bool          `yaml:"path_style"`
	Timeout         time.Duration `yaml:"timeout"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
}

type AlertsConfig struct {
	Email EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user"`
	SMTPPass   string `yaml:"smtp_pass"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

type DashboardConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	LogHistory     int    `yaml:"log_history"`
	MetricsHistory int    `yaml:"metrics_history"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used before the YAML file and the
// environment are applied.
func Default() Config {
	return Config{
		Signalbot: SignalbotConfig{Name: "signalbot", Version: "dev"},
		Telegram:  TelegramConfig{PollTimeout: 60 * time.Second},
		Ingestion: IngestionConfig{Timeout: DefaultIngestionTimeout, BurstSize: 1},
		Pipeline:  PipelineConfig{Workers: 4, Buffer: 64},
		Metrics: MetricsConfig{
			ReportInterval: time.Minute,
			CloudWatch:     CloudWatchConfig{Namespace: "Signalbot", Dashboard: "Signalbot"},
		},
		Archive: ArchiveConfig{S3: S3Config{Prefix: "telegram-signals", Timeout: 10 * time.Second}},
		Alerts:  AlertsConfig{Email: EmailConfig{SMTPServer: "smtp.gmail.com", SMTPPort: 587}},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// validates the result. An empty path skips the file and relies on defaults
// plus the environment.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&config)

	config.Telegram.ChannelID = strings.TrimSpace(config.Telegram.ChannelID)
	config.Ingestion.URL = strings.TrimSpace(config.Ingestion.URL)
	config.Archive.S3.Bucket = strings.TrimSpace(config.Archive.S3.Bucket)

	if config.Alerts.Email.FromEmail == "" {
		config.Alerts.Email.FromEmail = config.Alerts.Email.SMTPUser
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	setString := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	setString(&config.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&config.Telegram.ChannelID, "TELEGRAM_CHANNEL_ID")
	setString(&config.Ingestion.URL, "CLOUD_FUNCTION_URL")

	if config.Archive.S3.Enabled {
		setString(&config.Archive.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
		setString(&config.Archive.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
		setString(&config.Archive.S3.Region, "AWS_REGION")
		setString(&config.Archive.S3.Bucket, "ARCHIVE_S3_BUCKET")
	}
	if config.Metrics.CloudWatch.Enabled && config.Metrics.CloudWatch.Region == "" {
		setString(&config.Metrics.CloudWatch.Region, "AWS_REGION")
	}

	if config.Alerts.Email.Enabled {
		setString(&config.Alerts.Email.SMTPUser, "SMTP_USER")
		setString(&config.Alerts.Email.SMTPPass, "SMTP_PASS")
		setString(&config.Alerts.Email.ToEmail, "ALERT_TO_EMAIL")
		if v := os.Getenv("SMTP_PORT"); v != "" {
			if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				config.Alerts.Email.SMTPPort = port
			}
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Signalbot.Name == "" {
		return errors.New("signalbot.name is required")
	}

	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required (TELEGRAM_BOT_TOKEN)")
	}
	if cfg.Telegram.ChannelID == "" {
		return errors.New("telegram.channel_id is required (TELEGRAM_CHANNEL_ID)")
	}
	if cfg.Telegram.PollTimeout < 0 {
		return errors.New("telegram.poll_timeout must not be negative")
	}

	if cfg.Ingestion.URL == "" {
		return errors.New("ingestion.url is required (CLOUD_FUNCTION_URL)")
	}
	if !isValidEndpoint(cfg.Ingestion.URL) {
		return fmt.Errorf("ingestion.url '%s' must be an absolute http(s) URL", cfg.Ingestion.URL)
	}
	if cfg.Ingestion.Timeout <= 0 {
		return errors.New("ingestion.timeout must be greater than 0")
	}
	if cfg.Ingestion.RequestsPerSecond < 0 {
		return errors.New("ingestion.requests_per_second must not be negative")
	}

	if cfg.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be greater than 0")
	}
	if cfg.Pipeline.Buffer < 0 {
		return errors.New("pipeline.buffer must not be negative")
	}

	if cfg.Metrics.ReportInterval <= 0 {
		return errors.New("metrics.report_interval must be greater than 0")
	}

	if cfg.Archive.S3.Enabled {
		if cfg.Archive.S3.Bucket == "" {
			return errors.New("archive.s3.bucket is required when the archive is enabled")
		}
		if cfg.Archive.S3.Region == "" {
			return errors.New("archive.s3.region is required when the archive is enabled")
		}
		if !isValidS3Bucket(cfg.Archive.S3.Bucket) {
			return fmt.Errorf("archive.s3.bucket '%s' is invalid", cfg.Archive.S3.Bucket)
		}
	}

	if cfg.Alerts.Email.Enabled {
		e := cfg.Alerts.Email
		if e.SMTPServer == "" || e.SMTPUser == "" || e.SMTPPass == "" {
			return errors.New("alerts.email requires smtp_server, smtp_user and smtp_pass when enabled")
		}
		if e.SMTPPort <= 0 {
			return errors.New("alerts.email.smtp_port must be greater than 0")
		}
		if _, err := mail.ParseAddress(e.ToEmail); err != nil {
			return fmt.Errorf("alerts.email.to_email '%s' is invalid: %w", e.ToEmail, err)
		}
	}

	return nil
}

func isValidEndpoint(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
