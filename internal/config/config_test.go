package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anam-desktop.settings")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Import.CheckpointEvery)
	assert.Equal(t, "HAMEDCOLLECT", cfg.Import.CreatedBy)
	assert.Equal(t, 40, cfg.Import.OgdID)
	assert.Equal(t, 2*time.Second, cfg.Store.ProbeTimeout)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_MissingSettingsFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.settings"))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.11", cfg.Database.Host)
}

func TestLoad_JSONSettingsFile(t *testing.T) {
	path := writeSettings(t, `{
    "picserv_ip": "10.0.0.5",
    "picserv_share": "photos",
    "db_serverip": "10.0.0.6",
    "db_username": "collect",
    "db_password": "secret",
    "db_sid": "ANAMDB",
    "store_url": "http://10.0.0.7:8080",
    "store_token": "abc123",
    "checkpoint_every": 25
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Share.Address)
	assert.Equal(t, "photos", cfg.Share.Share)
	assert.Equal(t, "10.0.0.6", cfg.Database.Host)
	assert.Equal(t, "collect", cfg.Database.User)
	assert.Equal(t, "ANAMDB", cfg.Database.Database)
	assert.Equal(t, "http://10.0.0.7:8080", cfg.Store.URL)
	assert.Equal(t, "abc123", cfg.Store.Token)
	assert.Equal(t, 25, cfg.Import.CheckpointEvery)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeSettings(t, "db_serverip: 10.0.0.6\nstore_token: from-file\n")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("STORE_TOKEN", "from-env")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.Store.Token)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_InvalidSettingsFile(t *testing.T) {
	path := writeSettings(t, "{not: [valid")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_RejectsNonPositiveCheckpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Import.CheckpointEvery = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint interval")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=d sslmode=disable", cfg.GetDSN())
	assert.Equal(t, "h:5433/d", cfg.Identity())
}
