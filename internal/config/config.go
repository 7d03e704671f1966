package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pretgo/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Admin      AdminConfig      `yaml:"admin"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Labels     LabelsConfig     `yaml:"labels"`
	Exports    ExportConfig     `yaml:"exports"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	// MaxUploadMB caps CSV imports and backup restores.
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

type APIHTTPConfig struct {
	Address         string        `yaml:"address"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIRateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type AdminConfig struct {
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type AlertsConfig struct {
	// ScanInterval is how often the overdue gauges are refreshed.
	ScanInterval time.Duration `yaml:"scan_interval"`
}

type LabelsConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location returns the configured timezone, or time.Local.
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig holds the directories bundled into backup archives.
type StorageConfig struct {
	UploadsDir   string `yaml:"uploads_dir"`
	DocumentsDir string `yaml:"documents_dir"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
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

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
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

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.API.HTTP.Port < 0 || c.API.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.API.HTTP.Port)
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == c.API.HTTP.Port {
		return errors.New("prometheus port must differ from the http port")
	}
	if c.API.RateLimit.Enabled && c.API.RateLimit.RPS <= 0 {
		return errors.New("rate_limit.rps must be positive when rate limiting is enabled")
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup storage path is required when backups are enabled")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "", "stdout", "stderr", "file":
	default:
		return fmt.Errorf("unknown logging output %q", c.Logging.Output)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "pretgo"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 60 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.API.MaxUploadMB == 0 {
		c.API.MaxUploadMB = 100
	}
	if c.API.RateLimit.Enabled && c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Admin defaults
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = models.DefaultSessionTTL * time.Second
	}
	if c.Admin.CookieName == "" {
		c.Admin.CookieName = "pretgo_admin"
	}

	if c.Alerts.ScanInterval == 0 {
		c.Alerts.ScanInterval = models.DefaultAlertScanInterval * time.Second
	}
	if c.Labels.Timeout == 0 {
		c.Labels.Timeout = 30 * time.Second
	}
	if c.Labels.MaxRetries == 0 {
		c.Labels.MaxRetries = 2
	}

	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = "uploads"
	}
	if c.Storage.DocumentsDir == "" {
		c.Storage.DocumentsDir = "documents"
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 30
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
