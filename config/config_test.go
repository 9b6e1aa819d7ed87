package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig creates a configuration file with the given content and
// returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const minimalConfig = `signalbot:
  name: "TestBot"
  version: "1.0"
telegram:
  token: "123:abc"
  channel_id: "-100200300"
ingestion:
  url: "https://example.com/processTelegramSignal"
pipeline:
  workers: 2
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHANNEL_ID", "CLOUD_FUNCTION_URL", "APP_ENV", "AWS_REGION", "ARCHIVE_S3_BUCKET", "SMTP_USER", "SMTP_PASS", "ALERT_TO_EMAIL", "SMTP_PORT"} {
		t.Setenv(env, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Signalbot.Name != "TestBot" {
		t.Errorf("unexpected name: %s", cfg.Signalbot.Name)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Errorf("unexpected workers: %d", cfg.Pipeline.Workers)
	}
	if cfg.Ingestion.Timeout != 30*time.Second {
		t.Errorf("default ingestion timeout = %s, want 30s", cfg.Ingestion.Timeout)
	}
	if cfg.Telegram.PollTimeout != 60*time.Second {
		t.Errorf("default poll timeout = %s, want 60s", cfg.Telegram.PollTimeout)
	}
}

func TestLoadConfigDurations(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, minimalConfig+`metrics:
  report_interval: 15s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Metrics.ReportInterval != 15*time.Second {
		t.Errorf("report interval = %s, want 15s", cfg.Metrics.ReportInterval)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "999:env")
	t.Setenv("TELEGRAM_CHANNEL_ID", " -100999 ")
	t.Setenv("CLOUD_FUNCTION_URL", "http://localhost:5001/project/us-central1/processTelegramSignal")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Telegram.Token != "999:env" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChannelID != "-100999" {
		t.Errorf("channel id = %q", cfg.Telegram.ChannelID)
	}
	if !strings.HasPrefix(cfg.Ingestion.URL, "http://localhost:5001") {
		t.Errorf("ingestion url = %q", cfg.Ingestion.URL)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateConfig(t *testing.T) {
	clearEnv(t)
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"missing channel", func(c *Config) { c.Telegram.ChannelID = "" }, "telegram.channel_id"},
		{"missing url", func(c *Config) { c.Ingestion.URL = "" }, "ingestion.url is required"},
		{"relative url", func(c *Config) { c.Ingestion.URL = "/processTelegramSignal" }, "absolute http(s)"},
		{"ftp url", func(c *Config) { c.Ingestion.URL = "ftp://example.com/x" }, "absolute http(s)"},
		{"zero timeout", func(c *Config) { c.Ingestion.Timeout = 0 }, "ingestion.timeout"},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"archive without bucket", func(c *Config) { c.Archive.S3.Enabled = true }, "archive.s3.bucket"},
		{"archive invalid bucket", func(c *Config) {
			c.Archive.S3.Enabled = true
			c.Archive.S3.Bucket = "Bad_Bucket"
			c.Archive.S3.Region = "us-east-1"
		}, "is invalid"},
		{"email without credentials", func(c *Config) { c.Alerts.Email.Enabled = true }, "alerts.email"},
		{"email bad recipient", func(c *Config) {
			c.Alerts.Email = EmailConfig{Enabled: true, SMTPServer: "smtp.example.com", SMTPPort: 587, SMTPUser: "u", SMTPPass: "p", ToEmail: "not-an-address"}
		}, "to_email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Telegram.Token = "123:abc"
			cfg.Telegram.ChannelID = "-100200300"
			cfg.Ingestion.URL = "https://example.com/ingest"
			tc.mutate(&cfg)

			err := validateConfig(&cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	cases := map[string]string{
		"":           EnvironmentDevelopment,
		"prod":       EnvironmentProduction,
		"STAG":       EnvironmentStaging,
		"production": EnvironmentProduction,
		"qa":         "qa",
	}
	for input, want := range cases {
		t.Setenv("APP_ENV", input)
		if got := AppEnvironment(); got != want {
			t.Errorf("AppEnvironment(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	// The production file does not exist relative to the test's working
	// directory, so the default path is kept.
	if got := ResolveConfigPath(""); got != DefaultConfigPath {
		t.Errorf("ResolveConfigPath(\"\") = %q, want %q", got, DefaultConfigPath)
	}
	if got := ResolveConfigPath("custom.yml"); got != "custom.yml" {
		t.Errorf("explicit path replaced: %q", got)
	}
	if !IsProductionLike(AppEnvironment()) {
		t.Errorf("production should be production-like")
	}
}
