package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vizcount/vizcount/pkg/geom"
	"github.com/vizcount/vizcount/pkg/quality"
	"github.com/vizcount/vizcount/server/scanner"
)

// Environment variables that override the config file. These are secrets,
// so we prefer to keep them out of the JSON file.
const (
	EnvSyncURL   = "VIZCOUNT_SYNC_URL"
	EnvSyncToken = "VIZCOUNT_SYNC_TOKEN"
)

// Config is the server configuration.
// Zero values mean "use the default".
type Config struct {
	DBPath        string              `json:"dbPath"`        // SQLite database file
	Listen        string              `json:"listen"`        // HTTP listen address, eg ":8080"
	ScreenWidth   float32             `json:"screenWidth"`   // Size of the camera preview on the device
	ScreenHeight  float32             `json:"screenHeight"`  //
	ROI           *geom.RectF         `json:"roi"`           // Override the default capture rectangle
	ThrottleMS    int                 `json:"throttleMS"`    // Minimum milliseconds between analyzed frames
	LockMS        int                 `json:"lockMS"`        // Cool-down after a scan
	StallMS       int                 `json:"stallMS"`       // Show "reposition" warning after this long without a stable field
	MinConfidence float32             `json:"minConfidence"` // Ignore recognized lines below this confidence
	TimeZone      string              `json:"timeZone"`      // IANA time zone of the dates printed on labels. Default is local time.
	Quality       *quality.Thresholds `json:"quality"`       // Override the image quality thresholds
	SeedCatalog   bool                `json:"seedCatalog"`   // Populate an empty catalog with our default products
	SyncURL       string              `json:"syncURL"`       // Endpoint that receives scanned items
	SyncToken     string              `json:"syncToken"`     // Sent in the App Check header
	SyncBatchSize int                 `json:"syncBatchSize"` // Maximum records per sync request
}

func DefaultConfig() *Config {
	return &Config{
		DBPath:        "vizcount.sqlite",
		Listen:        ":8080",
		ScreenWidth:   400,
		ScreenHeight:  800,
		SeedCatalog:   true,
		SyncBatchSize: 200,
	}
}

// LoadConfig reads a JSON config file. Fields that are missing from the file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = "vizcount.json"
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets from the process environment, and then from a .env file.
// Variables that are already set in the process environment win over the .env file.
// A missing .env file is not an error.
func (c *Config) ApplyEnv(envFile string) error {
	fileEnv := map[string]string{}
	if envFile != "" {
		var err error
		fileEnv, err = godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("Error reading %v: %w", envFile, err)
		}
	}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fileEnv[key]
	}
	if v := lookup(EnvSyncURL); v != "" {
		c.SyncURL = v
	}
	if v := lookup(EnvSyncToken); v != "" {
		c.SyncToken = v
	}
	return nil
}

// ScannerSettings returns the scan pipeline tunables, starting from scanner.DefaultSettings
func (c *Config) ScannerSettings() (scanner.Settings, error) {
	s := scanner.DefaultSettings(c.ScreenWidth, c.ScreenHeight)
	if c.ROI != nil {
		s.ROI = *c.ROI
	}
	if c.ThrottleMS > 0 {
		s.ThrottleInterval = time.Duration(c.ThrottleMS) * time.Millisecond
	}
	if c.LockMS > 0 {
		s.LockDuration = time.Duration(c.LockMS) * time.Millisecond
	}
	if c.StallMS > 0 {
		s.StallWindow = time.Duration(c.StallMS) * time.Millisecond
	}
	if c.MinConfidence > 0 {
		s.MinConfidence = c.MinConfidence
	}
	if c.Quality != nil {
		s.Quality = *c.Quality
	}
	if c.TimeZone != "" {
		loc, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			return s, fmt.Errorf("Invalid time zone '%v': %w", c.TimeZone, err)
		}
		s.Location = loc
	}
	return s, nil
}
