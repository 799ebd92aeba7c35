package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings   `json:"server"`
	Metadata  MetadataSettings `json:"metadata"`
	Providers []ProviderConfig `json:"providers"`
	Ranking   RankingSettings  `json:"ranking"`
	Proxy     ProxySettings    `json:"proxy"`
	Retry     RetrySettings    `json:"retry"`
	Log       LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
}

// ProviderConfig enables and configures one upstream stream provider.
type ProviderConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // "vidlink" | "rezka"
	BaseURL string `json:"baseUrl,omitempty"`
	Enabled bool   `json:"enabled"`
}

// RankingSettings supplies the provider priority table. Provider ranking is
// deployment configuration, not a fixed enumeration: names listed earlier
// rank higher, names absent from the table share the lowest priority.
type RankingSettings struct {
	ProviderOrder []string `json:"providerOrder"`
}

// ProxySettings controls HLS relay rewriting.
type ProxySettings struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"` // public base URL of this server, e.g. http://localhost:8787
}

// RetrySettings tunes the shared retry helper used for flaky upstreams.
type RetrySettings struct {
	Attempts     int `json:"attempts"`
	BaseDelayMS  int `json:"baseDelayMs"`
	AdapterTOSec int `json:"adapterTimeoutSec"` // per-provider wall clock budget
}

// BaseDelay returns the configured backoff base as a duration.
func (r RetrySettings) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// AdapterTimeout returns the per-provider deadline as a duration.
func (r RetrySettings) AdapterTimeout() time.Duration {
	return time.Duration(r.AdapterTOSec) * time.Second
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8787,
		},
		Metadata: MetadataSettings{
			Language: "en-US",
		},
		Providers: []ProviderConfig{
			{Name: "VidLink", Type: "vidlink", Enabled: true},
			{Name: "Rezka", Type: "rezka", Enabled: true},
		},
		Ranking: RankingSettings{
			ProviderOrder: []string{"VidLink", "Rezka"},
		},
		Proxy: ProxySettings{
			Enabled: true,
			BaseURL: "http://localhost:8787",
		},
		Retry: RetrySettings{
			Attempts:     3,
			BaseDelayMS:  300,
			AdapterTOSec: 20,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    10,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Validate reports configuration problems that should abort startup.
func (s Settings) Validate() error {
	if s.Metadata.TMDBAPIKey == "" {
		return errors.New("metadata.tmdbApiKey is required")
	}
	if s.Proxy.Enabled && s.Proxy.BaseURL == "" {
		return errors.New("proxy.baseUrl is required when proxy is enabled")
	}
	if s.Retry.Attempts <= 0 {
		return errors.New("retry.attempts must be positive")
	}
	return nil
}

// Manager loads and persists the settings file, creating defaults when the
// file does not exist yet.
type Manager struct {
	path string

	mu     sync.Mutex
	loaded *Settings
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Load reads the settings file, creating it with defaults on first use.
// Environment variables override a small set of values so deployments can
// keep secrets out of the file: STREAMRELAY_TMDB_API_KEY and
// STREAMRELAY_PROXY_URL.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded != nil {
		return applyEnvOverrides(*m.loaded), nil
	}
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.save(defaults); err != nil {
			return Settings{}, err
		}
		m.loaded = &defaults
		return applyEnvOverrides(defaults), nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	m.loaded = &settings
	return applyEnvOverrides(settings), nil
}

// Save persists settings and refreshes the in-memory copy.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(s); err != nil {
		return err
	}
	m.loaded = &s
	return nil
}

func (m *Manager) save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

func applyEnvOverrides(s Settings) Settings {
	if key := os.Getenv("STREAMRELAY_TMDB_API_KEY"); key != "" {
		s.Metadata.TMDBAPIKey = key
	}
	if base := os.Getenv("STREAMRELAY_PROXY_URL"); base != "" {
		s.Proxy.BaseURL = base
	}
	return s
}
