package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	settings, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Server.Port != 8787 {
		t.Fatalf("expected default port 8787, got %d", settings.Server.Port)
	}
	if len(settings.Providers) == 0 {
		t.Fatalf("expected default providers")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file should have been created: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	settings := DefaultSettings()
	settings.Metadata.TMDBAPIKey = "test-key"
	settings.Ranking.ProviderOrder = []string{"Rezka", "VidLink"}
	if err := m.Save(settings); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Fresh manager forces a disk read.
	reloaded, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reloaded.Metadata.TMDBAPIKey != "test-key" {
		t.Fatalf("api key not persisted, got %q", reloaded.Metadata.TMDBAPIKey)
	}
	if len(reloaded.Ranking.ProviderOrder) != 2 || reloaded.Ranking.ProviderOrder[0] != "Rezka" {
		t.Fatalf("provider order not persisted: %v", reloaded.Ranking.ProviderOrder)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STREAMRELAY_TMDB_API_KEY", "env-key")
	t.Setenv("STREAMRELAY_PROXY_URL", "https://relay.example.com")

	m := NewManager(filepath.Join(t.TempDir(), "settings.json"))
	settings, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Metadata.TMDBAPIKey != "env-key" {
		t.Fatalf("expected env override for api key, got %q", settings.Metadata.TMDBAPIKey)
	}
	if settings.Proxy.BaseURL != "https://relay.example.com" {
		t.Fatalf("expected env override for proxy url, got %q", settings.Proxy.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(s *Settings) { s.Metadata.TMDBAPIKey = "k" }, false},
		{"missing api key", func(s *Settings) {}, true},
		{"proxy without base url", func(s *Settings) {
			s.Metadata.TMDBAPIKey = "k"
			s.Proxy.BaseURL = ""
		}, true},
		{"zero retry attempts", func(s *Settings) {
			s.Metadata.TMDBAPIKey = "k"
			s.Retry.Attempts = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
