package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileIsDefaults(t *testing.T) {
	t.Setenv(configEnv, filepath.Join(t.TempDir(), "nope.toml"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("expected defaults %+v, got %+v", want, cfg)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "api_url = \"https://staging.example/v2\"\nworkers = 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configEnv, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.APIURL != "https://staging.example/v2" {
		t.Errorf("api_url not applied: %q", cfg.APIURL)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers not applied: %d", cfg.Workers)
	}
	if cfg.CacheTTLDays != DefaultConfig().CacheTTLDays {
		t.Errorf("unset field should keep its default, got %d", cfg.CacheTTLDays)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("workers = \"many\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configEnv, path)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error for a malformed config")
	}
}
