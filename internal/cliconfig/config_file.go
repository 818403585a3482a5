package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Backend       string `toml:"backend"`
	DataDir       string `toml:"data_dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       *int   `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`
	Key           string `toml:"key"`
	FlushTimeout  string `toml:"flush_timeout"`
	LogFormat     string `toml:"log_format"`
	LogLevel      string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.gomarket/cartstore.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gomarket", "cartstore.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-password", fc.RedisPassword, &cfg.RedisPassword)
	s.setInt("redis-db", fc.RedisDB, &cfg.RedisDB)
	s.setString("redis-prefix", fc.RedisPrefix, &cfg.RedisPrefix)
	s.setString("key", fc.Key, &cfg.Key)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("flush-timeout", fc.FlushTimeout, &cfg.FlushTimeout); err != nil {
		return err
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
