package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is the root configuration for fieldtrack, stored in
// ~/.fieldtrack/config.json. The file supports single-line // comments for
// documentation purposes.
type Config struct {
	API      APIConfig      `json:"api"`
	Tracking TrackingConfig `json:"tracking"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	// BaseURL is the AutoSched API root.
	BaseURL string `json:"base_url"`
}

// TrackingConfig holds location tracking settings.
type TrackingConfig struct {
	// IntervalMinutes is the sampling period for both the background
	// subscription and the foreground fallback ticker.
	IntervalMinutes int `json:"interval_minutes"`
	// CoalesceSeconds collapses transmissions arriving within this window
	// into one. 0 keeps the historical dual-path transmission.
	CoalesceSeconds int `json:"coalesce_seconds"`
	// Provider selects the location source: "gpsd" or "feed".
	Provider string `json:"provider"`
	// GPSDAddr is the gpsd TCP address used by the gpsd provider.
	GPSDAddr string `json:"gpsd_addr"`
	// FeedURL is the websocket gateway used by the feed provider.
	FeedURL string `json:"feed_url"`
}

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://autosched-chi.vercel.app/api"
	// DefaultIntervalMinutes matches the sampling period the mobile
	// clients report at.
	DefaultIntervalMinutes = 5
	// DefaultProvider is the on-device gpsd daemon.
	DefaultProvider = "gpsd"
	// DefaultGPSDAddr is the conventional gpsd listen address.
	DefaultGPSDAddr = "localhost:2947"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		API: APIConfig{BaseURL: DefaultBaseURL},
		Tracking: TrackingConfig{
			IntervalMinutes: DefaultIntervalMinutes,
			CoalesceSeconds: 0,
			Provider:        DefaultProvider,
			GPSDAddr:        DefaultGPSDAddr,
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// fieldtrack configuration: ~/.fieldtrack/config.json
//
// All settings are optional; the built-in defaults shown below work out of
// the box against the production AutoSched API with a local gpsd daemon.
// Environment variables (FIELDTRACK_API_URL, FIELDTRACK_GPSD_ADDR,
// FIELDTRACK_FEED_URL) override this file; a .env in the working directory
// is loaded first.
{
  "api": {
    // AutoSched API root.
    "base_url": "https://autosched-chi.vercel.app/api"
  },

  "tracking": {
    // Sampling period in minutes, applied to both the background
    // subscription and the foreground fallback ticker.
    "interval_minutes": 5,

    // Collapse transmissions arriving within this many seconds into one.
    // 0 keeps one transmission per sampling path (up to two per interval).
    "coalesce_seconds": 0,

    // Location source: "gpsd" (local daemon) or "feed" (websocket gateway).
    "provider": "gpsd",

    // gpsd TCP address, used when provider is "gpsd".
    "gpsd_addr": "localhost:2947",

    // Websocket position gateway, used when provider is "feed",
    // e.g. "ws://localhost:8090/positions".
    "feed_url": ""
  }
}
`

// configFilePath returns the path to ~/.fieldtrack/config.json.
func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".fieldtrack", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.fieldtrack/config.json, creating it with annotated defaults
// on first run, then applies environment overrides. Lines starting with //
// are treated as comments and stripped before JSON parsing.
func Load() (Config, error) {
	path, err := configFilePath()
	if err != nil {
		return defaultConfig(), err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return applyEnv(defaultConfig()), nil
	}
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	cleaned := stripLineComments(data)
	var cfg Config
	if err := json.Unmarshal(cleaned, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user only partially fills in the file.
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.Tracking.IntervalMinutes <= 0 {
		cfg.Tracking.IntervalMinutes = DefaultIntervalMinutes
	}
	if cfg.Tracking.Provider == "" {
		cfg.Tracking.Provider = DefaultProvider
	}
	if cfg.Tracking.GPSDAddr == "" {
		cfg.Tracking.GPSDAddr = DefaultGPSDAddr
	}

	return applyEnv(cfg), nil
}

// applyEnv layers .env and process environment overrides on top of cfg.
func applyEnv(cfg Config) Config {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if v := os.Getenv("FIELDTRACK_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FIELDTRACK_GPSD_ADDR"); v != "" {
		cfg.Tracking.GPSDAddr = v
	}
	if v := os.Getenv("FIELDTRACK_FEED_URL"); v != "" {
		cfg.Tracking.FeedURL = v
		cfg.Tracking.Provider = "feed"
	}
	return cfg
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
