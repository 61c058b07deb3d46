package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGatewayConfigSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg GatewayConfig
	cfg.SetDefaults()

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestGatewayConfigAddrPrefersBind(t *testing.T) {
	t.Parallel()

	cfg := GatewayConfig{Host: "127.0.0.1", Port: 9000, Bind: "0.0.0.0:443"}
	if got := cfg.Addr(); got != "0.0.0.0:443" {
		t.Errorf("Addr() = %q, want 0.0.0.0:443", got)
	}
}

func TestGatewayConfigAddrFromHostPort(t *testing.T) {
	t.Parallel()

	cfg := GatewayConfig{Host: "127.0.0.1", Port: 9000}
	if got := cfg.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9000", got)
	}
}

func TestAgentConfigSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg AgentConfig
	cfg.SetDefaults()

	if cfg.RemoteHost != "app.tunly.online" {
		t.Errorf("RemoteHost = %q, want app.tunly.online", cfg.RemoteHost)
	}
	if cfg.Local != "127.0.0.1:80" {
		t.Errorf("Local = %q, want 127.0.0.1:80", cfg.Local)
	}
	if !cfg.UseWSS {
		t.Error("UseWSS should default to true")
	}
	if cfg.Path != "/ws" {
		t.Errorf("Path = %q, want /ws", cfg.Path)
	}
}

func TestAgentConfigFallbackTokenFromEnv(t *testing.T) {
	t.Setenv("TUNLY_TOKEN", "env-token")

	cfg := AgentConfig{}
	cfg.applyFallbackToken()

	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Token)
	}
}

func TestAgentConfigFallbackTokenFromConfigTxt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte("# comment\nremote=ignored\ntoken = file-token\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := readConfigTxtToken(path)
	if got != "file-token" {
		t.Errorf("readConfigTxtToken = %q, want file-token", got)
	}
}

func TestAgentConfigFallbackTokenAbsentWhenTokenURLSet(t *testing.T) {
	cfg := AgentConfig{TokenURL: "https://gateway.example/token"}
	cfg.applyFallbackToken()

	if cfg.Token != "" {
		t.Errorf("Token = %q, want empty when TokenURL is set", cfg.Token)
	}
}

func TestReadConfigTxtTokenMissingFile(t *testing.T) {
	if got := readConfigTxtToken(filepath.Join(t.TempDir(), "missing.txt")); got != "" {
		t.Errorf("readConfigTxtToken = %q, want empty for missing file", got)
	}
}
