package cliconfig

import "os"

// EnvPrefix is the prefix of every environment variable read by ApplyEnvConfig.
const EnvPrefix = "CARTSTORE_"

// ApplyEnvConfig applies configuration from environment variables (CARTSTORE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("backend", os.Getenv(EnvPrefix+"BACKEND"), &cfg.Backend)
	s.setString("data-dir", os.Getenv(EnvPrefix+"DATA_DIR"), &cfg.DataDir)
	s.setString("redis-addr", os.Getenv(EnvPrefix+"REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-password", os.Getenv(EnvPrefix+"REDIS_PASSWORD"), &cfg.RedisPassword)
	s.setString("redis-prefix", os.Getenv(EnvPrefix+"REDIS_PREFIX"), &cfg.RedisPrefix)
	s.setString("key", os.Getenv(EnvPrefix+"KEY"), &cfg.Key)
	s.setString("log-format", os.Getenv(EnvPrefix+"LOG_FORMAT"), &cfg.LogFormat)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("redis-db", os.Getenv(EnvPrefix+"REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}
	if err := s.setDuration("flush-timeout", os.Getenv(EnvPrefix+"FLUSH_TIMEOUT"), &cfg.FlushTimeout); err != nil {
		return err
	}

	return nil
}
