package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gomarket/cartstore"
	"github.com/gomarket/cartstore/pkg/cart"
)

// Log formats accepted by --log-format.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
	LogFormatLogrus  = "logrus"
)

// Config holds CLI configuration for cartstore.
type Config struct {
	Backend string
	DataDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	Key          string
	FlushTimeout time.Duration

	LogFormat string
	LogLevel  string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Backend:      string(cartstore.BackendBunt),
		DataDir:      cartstore.DefaultDataDir(),
		Key:          cart.DefaultKey,
		FlushTimeout: cart.FlushTimeout,
		LogFormat:    LogFormatConsole,
		LogLevel:     "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON, LogFormatLogrus:
	default:
		return fmt.Errorf("log-format must be one of console, json, logrus (got %q)", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return c.StoreConfig().Validate()
}

// StoreConfig converts the CLI configuration to a cartstore.Config.
func (c *Config) StoreConfig() cartstore.Config {
	return cartstore.Config{
		Backend:       cartstore.Backend(c.Backend),
		DataDir:       c.DataDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
		Key:           c.Key,
		FlushTimeout:  c.FlushTimeout,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value from a pointer if not nil and flag not changed.
// Zero is a meaningful value (redis database 0), hence the pointer.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("%s must not be negative", flag)
	}
	*dst = i
	return nil
}
