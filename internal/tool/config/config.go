package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds the aerotool configuration.
type Config struct {
	Cluster ClusterConfig `json:"cluster" yaml:"cluster"`
	Logger  logger.Config `json:"logger" yaml:"logger"`
}

type ClusterConfig struct {
	// Seeds is a comma-separated host list, "host1:3000,host2".
	Seeds string `json:"seeds" yaml:"seeds"`

	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`

	// AuthMode is "none", "internal", "external" or "pki".
	AuthMode string `json:"auth_mode" yaml:"auth_mode"`

	ClusterName string `json:"cluster_name" yaml:"cluster_name"`

	ConnectTimeoutMS int `json:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	TotalTimeoutMS   int `json:"total_timeout_ms" yaml:"total_timeout_ms"`
	MaxConnsPerNode  int `json:"max_conns_per_node" yaml:"max_conns_per_node"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Seeds:            "localhost:3000",
			AuthMode:         "none",
			ConnectTimeoutMS: 1000,
			TotalTimeoutMS:   5000,
			MaxConnsPerNode:  16,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file, falling back to defaults when no
// path was given.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "tool", "config", env+".yaml")
	}

	cfg := DefaultConfig()
	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		if path != "" {
			return nil, err
		}
		log.Printf("Config file not found, using defaults. Path: %s, Error: %v", configPath, err)
		parsedCfg = cfg
	}
	applyLogEnv(parsedCfg)
	return parsedCfg, nil
}

// applyLogEnv lets AEROGO_LOG override the configured log level.
func applyLogEnv(cfg *Config) {
	switch os.Getenv("AEROGO_LOG") {
	case "debug":
		cfg.Logger.LogLevel = logger.LevelDebug
	case "info":
		cfg.Logger.LogLevel = logger.LevelInfo
	case "warn":
		cfg.Logger.LogLevel = logger.LevelWarn
	case "error":
		cfg.Logger.LogLevel = logger.LevelError
	}
}

// MustLoad loads configuration or exits on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
