package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
server:
  host: "127.0.0.1"
  port: 9000
  api_key: "file-key"
worker:
  concurrency: 2
storage:
  backend: local
  local_path: ./downloads
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("API_KEY", "env-key")
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env override", cfg.Server.APIKey)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("host = %q, want file value", cfg.Server.Host)
	}
}

func TestLoad_MissingAPIKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("worker:\n  concurrency: 1\nstorage:\n  backend: local\n  local_path: ./x\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing API_KEY")
	}
}

func TestValidate_UnknownBackendRejected(t *testing.T) {
	c := &Config{}
	c.Server.APIKey = "k"
	c.Worker.Concurrency = 1
	c.Scraper.MaxConcurrentDownloads = 1
	c.Storage.Backend = "ftp"

	if err := c.Validate(); err == nil {
		t.Fatal("expected unknown backend to fail validation")
	}
}

func TestAddress(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := s.Address(); got != "0.0.0.0:8080" {
		t.Fatalf("address = %q", got)
	}
}
