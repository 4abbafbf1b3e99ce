package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DERIBIT_KEY", "DERIBIT_SECRET", "DERIBIT_REST_URL", "DERIBIT_WS_URL", "DB_PATH"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
app:
  name: "pulse-exec"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Trading.Mode != "PAPER" {
		t.Errorf("default mode = %q, want PAPER", cfg.Trading.Mode)
	}
	if cfg.API.Deribit.RestURL != "https://test.deribit.com" {
		t.Errorf("default rest url = %q", cfg.API.Deribit.RestURL)
	}
	if cfg.Storage.DBPath != "./pulseexec.db" {
		t.Errorf("default db path = %q", cfg.Storage.DBPath)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
trading:
  mode: "MOCK"
storage:
  db_path: "/tmp/from_file.db"
`)

	t.Setenv("DERIBIT_KEY", "env-key")
	t.Setenv("DERIBIT_SECRET", "env-secret")
	t.Setenv("DERIBIT_REST_URL", "https://www.deribit.com")
	t.Setenv("DB_PATH", "/tmp/from_env.db")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.Deribit.AccessKey != "env-key" || cfg.API.Deribit.SecretKey != "env-secret" {
		t.Error("credentials not taken from environment")
	}
	if cfg.API.Deribit.RestURL != "https://www.deribit.com" {
		t.Errorf("rest url = %q, env should win", cfg.API.Deribit.RestURL)
	}
	if cfg.Storage.DBPath != "/tmp/from_env.db" {
		t.Errorf("db path = %q, env should win over file", cfg.Storage.DBPath)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"bad mode", "trading:\n  mode: \"TURBO\"\n", true},
		{"bad id scheme", "orders:\n  id_scheme: \"snowflake\"\n", true},
		{"live without keys", "trading:\n  mode: \"LIVE\"\n", true},
		{"valid paper", "trading:\n  mode: \"PAPER\"\n", false},
		{"valid uuid scheme", "orders:\n  id_scheme: \"uuid\"\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
