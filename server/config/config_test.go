package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vizcount/vizcount/pkg/geom"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "vizcount.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"dbPath": "/var/lib/vizcount/db.sqlite",
		"lockMS": 2000,
		"roi": {"x": 10, "y": 20, "width": 100, "height": 50},
		"timeZone": "America/Toronto"
	}`), 0644))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/vizcount/db.sqlite", cfg.DBPath)
	// Defaults survive
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, float32(400), cfg.ScreenWidth)

	s, err := cfg.ScannerSettings()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, s.LockDuration)
	require.Equal(t, 300*time.Millisecond, s.ThrottleInterval)
	require.Equal(t, geom.RectF{X: 10, Y: 20, Width: 100, Height: 50}, s.ROI)
	require.Equal(t, "America/Toronto", s.Location.String())

	cfg.TimeZone = "Not/AZone"
	_, err = cfg.ScannerSettings()
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(file, []byte(`{not json`), 0644))
	_, err = LoadConfig(file)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VIZCOUNT_SYNC_URL=https://example.com/sync\nVIZCOUNT_SYNC_TOKEN=from-file\n"), 0644))

	t.Setenv(EnvSyncToken, "from-env")
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envFile))
	require.Equal(t, "https://example.com/sync", cfg.SyncURL)
	require.Equal(t, "from-env", cfg.SyncToken)

	cfg = DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(filepath.Join(dir, "missing.env")))
	require.Equal(t, "", cfg.SyncURL)
}
