package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
database:
  host: localhost
  name: doorlock
  user: u
  password: p
access:
  qr_authorized_value: SECRET
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 0.5, cfg.Access.RecognitionThreshold)
	assert.Equal(t, 500, cfg.Access.SnapshotRetention)
	assert.Equal(t, "door-lock-server", cfg.MQTT.ClientID)
	assert.Equal(t, "doorlock/command", cfg.MQTT.Topic)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOOR_SERVER_PORT", "9090")
	t.Setenv("DOOR_DB_HOST", "db.internal")
	t.Setenv("DOOR_QR_VALUE", "FROM_ENV")
	t.Setenv("DOOR_RECOGNITION_THRESHOLD", "0.72")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "FROM_ENV", cfg.Access.QRAuthorizedValue)
	assert.Equal(t, 0.72, cfg.Access.RecognitionThreshold)
}

func TestLoadRejectsMissingQRValue(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  host: localhost
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qr_authorized_value")
}

func TestLoadRejectsMissingDatabaseHost(t *testing.T) {
	_, err := Load(writeConfig(t, `
access:
  qr_authorized_value: SECRET
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", d.DSN())
}
