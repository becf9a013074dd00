package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Planner   PlannerConfig   `yaml:"planner"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Auth      AuthConfig      `yaml:"auth"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig locates the per-device databases. An empty Dir keeps every
// device store in memory.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type PlannerConfig struct {
	Source       string        `yaml:"source"` // "file" or "http"
	SnapshotPath string        `yaml:"snapshot_path"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type EvidenceConfig struct {
	Source    string   `yaml:"source"` // "dir" or "s3"
	Dir       string   `yaml:"dir"`
	URLPrefix string   `yaml:"url_prefix"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

type AuthConfig struct {
	Enabled     bool   `yaml:"enabled"`
	JWTSecret   string `yaml:"jwt_secret"`
	DeviceClaim string `yaml:"device_claim"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "http" or "stdio"
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("FEAPI_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("FEAPI_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("FEAPI_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FEAPI_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dir, ok := os.LookupEnv("FEAPI_STORE_DIR"); ok {
		cfg.Store.Dir = dir
	}
	if source := os.Getenv("FEAPI_PLANNER_SOURCE"); source != "" {
		cfg.Planner.Source = source
	}
	if path := os.Getenv("FEAPI_PLANNER_SNAPSHOT_PATH"); path != "" {
		cfg.Planner.SnapshotPath = path
	}
	if baseURL := os.Getenv("FEAPI_PLANNER_BASE_URL"); baseURL != "" {
		cfg.Planner.BaseURL = baseURL
	}
	if timeoutStr := os.Getenv("FEAPI_PLANNER_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FEAPI_PLANNER_TIMEOUT: %w", err)
		}
		cfg.Planner.Timeout = timeout
	}
	if source := os.Getenv("FEAPI_EVIDENCE_SOURCE"); source != "" {
		cfg.Evidence.Source = source
	}
	if dir := os.Getenv("FEAPI_EVIDENCE_DIR"); dir != "" {
		cfg.Evidence.Dir = dir
	}
	if bucket := os.Getenv("FEAPI_EVIDENCE_S3_BUCKET"); bucket != "" {
		cfg.Evidence.S3.Bucket = bucket
	}
	if region := os.Getenv("FEAPI_EVIDENCE_S3_REGION"); region != "" {
		cfg.Evidence.S3.Region = region
	}
	if endpoint := os.Getenv("FEAPI_EVIDENCE_S3_ENDPOINT"); endpoint != "" {
		cfg.Evidence.S3.Endpoint = endpoint
	}
	if enabledStr := os.Getenv("FEAPI_AUTH_ENABLED"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FEAPI_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if secret := os.Getenv("FEAPI_AUTH_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if mode := os.Getenv("FEAPI_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if level := os.Getenv("FEAPI_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("auth enabled without jwt_secret")
	}

	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Store: StoreConfig{
			Dir: "data",
		},
		Planner: PlannerConfig{
			Source:       "file",
			SnapshotPath: "resources/data.json",
			Timeout:      10 * time.Second,
		},
		Evidence: EvidenceConfig{
			Source:    "dir",
			Dir:       "placement_imgs",
			URLPrefix: "/image/placement_imgs",
		},
		Auth: AuthConfig{
			DeviceClaim: "preferred_username",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
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
