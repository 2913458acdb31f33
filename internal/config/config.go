package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Rounds RoundsConfig `yaml:"rounds"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type RoundsConfig struct {
	// Quorum is how many terminal tasks per unit a round needs before it
	// counts as complete. Units with fewer assigned raters require only
	// that many.
	Quorum int `yaml:"quorum"`
	// DefaultThreshold is the flagging threshold used when a round
	// creation request does not specify one.
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "concord.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Rounds: RoundsConfig{
			Quorum:           3,
			DefaultThreshold: 0.6,
		},
	}

	if path := os.Getenv("CONCORD_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("CONCORD_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("CONCORD_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONCORD_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("CONCORD_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("CONCORD_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if quorumStr := os.Getenv("CONCORD_ROUNDS_QUORUM"); quorumStr != "" {
		quorum, err := strconv.Atoi(quorumStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONCORD_ROUNDS_QUORUM: %w", err)
		}
		cfg.Rounds.Quorum = quorum
	}
	if thresholdStr := os.Getenv("CONCORD_ROUNDS_DEFAULT_THRESHOLD"); thresholdStr != "" {
		threshold, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONCORD_ROUNDS_DEFAULT_THRESHOLD: %w", err)
		}
		cfg.Rounds.DefaultThreshold = threshold
	}

	if cfg.Rounds.Quorum < 1 {
		return Config{}, fmt.Errorf("rounds quorum must be at least 1, got %d", cfg.Rounds.Quorum)
	}
	if cfg.Rounds.DefaultThreshold < 0 || cfg.Rounds.DefaultThreshold > 1 {
		return Config{}, fmt.Errorf("rounds default threshold must be in [0,1], got %v", cfg.Rounds.DefaultThreshold)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
