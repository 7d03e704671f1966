package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("PRETGO_DB", filepath.Join(tmpDir, "gestion_prets.db"))

	yamlContent := `
app:
  name: "pretgo-test"
  timezone: "Europe/Paris"
database:
  path: "${PRETGO_DB}"
api:
  http:
    port: 8099
  rate_limit:
    enabled: true
    rps: 5
admin:
  session_ttl: 30m
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "pretgo-test", cfg.App.Name)
	assert.Equal(t, filepath.Join(tmpDir, "gestion_prets.db"), cfg.Database.Path)
	assert.Equal(t, 8099, cfg.API.HTTP.Port)
	assert.Equal(t, 30*time.Minute, cfg.Admin.SessionTTL)
	assert.Equal(t, 20, cfg.API.RateLimit.Burst)

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "rate limit without rps",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				API:      APIConfig{RateLimit: APIRateLimitConfig{Enabled: true}},
			},
			wantErr: true,
		},
		{
			name: "backup without storage path",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Backup:   BackupConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "prometheus on the api port",
			cfg: Config{
				Database:   DatabaseConfig{Path: "path"},
				API:        APIConfig{HTTP: APIHTTPConfig{Port: 8080}},
				Monitoring: MonitoringConfig{PrometheusEnabled: true, PrometheusPort: 8080},
			},
			wantErr: true,
		},
		{
			name: "unknown timezone",
			cfg: Config{
				App:      AppConfig{Timezone: "Mars/Olympus"},
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: true,
		},
		{
			name: "unknown log output",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Logging:  LoggingConfig{Output: "syslog"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "pretgo", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.API.HTTP.ShutdownTimeout)
	assert.Equal(t, 8*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, "pretgo_admin", cfg.Admin.CookieName)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.ScanInterval)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
	assert.Equal(t, "uploads", cfg.Storage.UploadsDir)
	assert.Zero(t, cfg.Monitoring.PrometheusPort)

	cfg = &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
}
