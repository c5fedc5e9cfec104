package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: presence
  user: presence
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 112, cfg.Vision.FaceSize)
	assert.Equal(t, 0.5, cfg.Vision.DetectionThreshold)
	assert.Equal(t, 0.75, cfg.Vision.RecognitionThreshold)
	assert.Equal(t, 4, cfg.Vision.WorkerCount)
	assert.Equal(t, 60*time.Second, cfg.Attendance.Cooldown)
	assert.Equal(t, "08:00", cfg.Attendance.WorkStart)
	assert.Equal(t, 1, cfg.Attendance.RetentionDays)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: sekrit
attendance:
  cooldown: 90s
  work_start: "09:30"
  retention_days: 14
vision:
  face_size: 96
  recognition_threshold: 0.8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Attendance.Cooldown)
	assert.Equal(t, 14, cfg.Attendance.RetentionDays)
	assert.Equal(t, 96, cfg.Vision.FaceSize)
	assert.Equal(t, 0.8, cfg.Vision.RecognitionThreshold)

	hour, minute, err := cfg.Attendance.WorkStartClock()
	require.NoError(t, err)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 30, minute)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PRESENCE_SERVER_PORT", "7070")
	t.Setenv("PRESENCE_DB_HOST", "db.internal")
	t.Setenv("PRESENCE_COOLDOWN", "2m")
	t.Setenv("PRESENCE_WORK_START", "07:15")

	path := writeConfig(t, `
server:
  port: 9090
database:
  host: localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 2*time.Minute, cfg.Attendance.Cooldown)
	assert.Equal(t, "07:15", cfg.Attendance.WorkStart)
}

func TestLoadRejectsBadWorkStart(t *testing.T) {
	path := writeConfig(t, `
attendance:
  work_start: "25:99"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", d.DSN())
}
