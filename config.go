package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// RingConfig describes a ring created when the daemon starts.
type RingConfig struct {
	Name   string `toml:"name"`
	Joint  bool   `toml:"joint"`
	Values []any  `toml:"values"`
}

type Config struct {
	Host             string       `toml:"host"`
	Port             string       `toml:"port"`
	LogLevel         string       `toml:"log_level"`
	HistorySize      int          `toml:"history_size"`
	SubscriberBuffer int          `toml:"subscriber_buffer"`
	MaxWalk          int          `toml:"max_walk"`
	Rings            []RingConfig `toml:"ring"`
}

func DefaultConfig() *Config {
	return &Config{
		Host:             "127.0.0.1",
		Port:             "1225",
		LogLevel:         "info",
		HistorySize:      100,
		SubscriberBuffer: 16,
		MaxWalk:          10000,
	}
}

func GetEnvOr(getenv func(string) string, key string, fallback string) string {
	value := getenv(key)
	if value == "" {
		value = fallback
	}
	return value
}

// LoadConfig reads the TOML file at path over the defaults, then applies
// HOST, PORT and LOG_LEVEL from the environment. An empty path skips the
// file; a missing default file is not an error when optional is set.
func LoadConfig(fsys afero.Fs, path string, optional bool, getenv func(string) string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && optional:
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
			if err := dec.Decode(c); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	c.Host = GetEnvOr(getenv, "HOST", c.Host)
	c.Port = GetEnvOr(getenv, "PORT", c.Port)
	c.LogLevel = GetEnvOr(getenv, "LOG_LEVEL", c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be greater than 0, got %d", c.HistorySize)
	}
	if c.SubscriberBuffer < 0 {
		return fmt.Errorf("subscriber_buffer must not be negative, got %d", c.SubscriberBuffer)
	}
	if c.MaxWalk <= 0 {
		return fmt.Errorf("max_walk must be greater than 0, got %d", c.MaxWalk)
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Rings))
	for i, rc := range c.Rings {
		if rc.Name == "" {
			return fmt.Errorf("ring #%d has no name", i)
		}
		if seen[rc.Name] {
			return fmt.Errorf("ring '%s' is defined twice", rc.Name)
		}
		seen[rc.Name] = true
	}
	return nil
}

func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log_level '%s': %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}
