package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brand != "innohedge" {
		t.Errorf("Brand = %q, want innohedge", cfg.Brand)
	}
	if cfg.API.Timeout != 0 {
		t.Errorf("API.Timeout = %v, want no timeout by default", cfg.API.Timeout)
	}
	if cfg.Push.Transport != PushSocketIO {
		t.Errorf("Push.Transport = %q, want %q", cfg.Push.Transport, PushSocketIO)
	}
	if cfg.Push.ReconnectAttempts != 5 {
		t.Errorf("Push.ReconnectAttempts = %d, want 5", cfg.Push.ReconnectAttempts)
	}
	if cfg.Dashboard.IdleTimeout != 30*time.Minute {
		t.Errorf("Dashboard.IdleTimeout = %v", cfg.Dashboard.IdleTimeout)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode by default")
	}
}

func TestLoad_TrimsAPIBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.com/api" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestLoad_Durations(t *testing.T) {
	t.Setenv("API_TIMEOUT", "15s")
	t.Setenv("DASHBOARD_LOAD_TIMEOUT", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("API.Timeout = %v", cfg.API.Timeout)
	}
	if cfg.Dashboard.LoadTimeout != time.Minute {
		t.Errorf("Dashboard.LoadTimeout = %v", cfg.Dashboard.LoadTimeout)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown brand", map[string]string{"BRAND": "acme"}},
		{"unknown transport", map[string]string{"PUSH_TRANSPORT": "carrier-pigeon"}},
		{"socketio without url", map[string]string{"PUSH_TRANSPORT": "socketio", "PUSH_URL": ""}},
		{"redis without channel", map[string]string{"PUSH_TRANSPORT": "redis", "PUSH_REDIS_CHANNEL": ""}},
		{"empty api url", map[string]string{"API_BASE_URL": ""}},
		{"negative timeout", map[string]string{"API_TIMEOUT": "-1s"}},
		{"zero idle timeout", map[string]string{"DASHBOARD_IDLE_TIMEOUT": "0s"}},
		{"negative reconnect attempts", map[string]string{"PUSH_RECONNECT_ATTEMPTS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_BrandCaseInsensitive(t *testing.T) {
	t.Setenv("BRAND", "Innohed")
	t.Setenv("PUSH_TRANSPORT", "NONE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brand != "innohed" || cfg.Push.Transport != PushNone {
		t.Errorf("Brand=%q Transport=%q", cfg.Brand, cfg.Push.Transport)
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,127.0.0.1/32 ")
	t.Setenv("BASE_URL", "https://console.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "127.0.0.1/32" {
		t.Errorf("TrustedProxies = %q", cfg.TrustedProxies)
	}
	if !cfg.IsSecure() {
		t.Error("https base URL should be secure")
	}
}
