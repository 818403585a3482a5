package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestApplyFileConfig(t *testing.T) {
	db := 3
	zero := 0

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Backend:      "redis",
				RedisAddr:    "redis://cache:6379/0",
				RedisDB:      &db,
				RedisPrefix:  "shop:",
				Key:          "cart",
				FlushTimeout: "2s",
				LogFormat:    "json",
				LogLevel:     "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Backend:      "redis",
				RedisAddr:    "redis://cache:6379/0",
				RedisDB:      3,
				RedisPrefix:  "shop:",
				Key:          "cart",
				FlushTimeout: 2 * time.Second,
				LogFormat:    "json",
				LogLevel:     "debug",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Backend: "file",
				DataDir: "/config/data",
			},
			changed: map[string]bool{"backend": true},
			initial: Config{Backend: "memory"},
			expected: Config{
				Backend: "memory",
				DataDir: "/config/data",
			},
		},
		{
			name:       "empty values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{Backend: "bunt", Key: "k", FlushTimeout: time.Second},
			expected:   Config{Backend: "bunt", Key: "k", FlushTimeout: time.Second},
		},
		{
			name:       "explicit zero redis db",
			fileConfig: FileConfig{RedisDB: &zero},
			changed:    map[string]bool{},
			initial:    Config{RedisDB: 5},
			expected:   Config{RedisDB: 0},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{FlushTimeout: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cartstore.toml")

	tomlContent := `
backend = "file"
data_dir = "/var/lib/cart"
redis_db = 2
flush_timeout = "10s"
log_format = "logrus"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Backend != "file" {
		t.Errorf("Backend = %v, want file", fc.Backend)
	}
	if fc.DataDir != "/var/lib/cart" {
		t.Errorf("DataDir = %v, want /var/lib/cart", fc.DataDir)
	}
	if fc.RedisDB == nil || *fc.RedisDB != 2 {
		t.Errorf("RedisDB = %v, want 2", fc.RedisDB)
	}
	if fc.FlushTimeout != "10s" {
		t.Errorf("FlushTimeout = %v, want 10s", fc.FlushTimeout)
	}
	if fc.LogFormat != "logrus" {
		t.Errorf("LogFormat = %v, want logrus", fc.LogFormat)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/cartstore.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
backend = "bunt"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.HasSuffix(path, filepath.Join(".gomarket", "cartstore.toml")) {
		t.Errorf("DefaultConfigPath() = %v, should end in .gomarket/cartstore.toml", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
