package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env             string
	HttpPort        string
	DBPath          string // used when DBDriver=sqlite
	DBDriver        string // sqlite|postgres
	DBDsn           string // used when DBDriver=postgres (e.g., DATABASE_URL)
	StaticDir       string
	CloudConfigPath string

	Cloud *CloudConfig
}

// CloudConfig is the static provider inventory: which projects, regions and
// credential references each vendor adapter is constructed from. Loaded once
// at startup and treated as immutable afterwards.
type CloudConfig struct {
	AWS  *AWSConfig  `yaml:"aws,omitempty"`
	GCP  *GCPConfig  `yaml:"gcp,omitempty"`
	Mock *MockConfig `yaml:"mock,omitempty"`
}

type AWSConfig struct {
	// Profile selects a shared-credentials profile; empty uses the default
	// credential chain.
	Profile string   `yaml:"profile,omitempty"`
	Regions []string `yaml:"regions"`
	// Endpoint overrides the API endpoint, for localstack-style testing.
	Endpoint string `yaml:"endpoint,omitempty"`
}

type GCPConfig struct {
	Project         string   `yaml:"project"`
	Zones           []string `yaml:"zones"`
	CredentialsFile string   `yaml:"credentials_file,omitempty"`
	// Endpoint overrides the compute API endpoint, used by tests.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// MockConfig enables the in-memory provider, mainly for local development.
type MockConfig struct {
	Regions []string `yaml:"regions"`
}

func Load() *Config {
	cfg := &Config{
		Env:             getEnv("APP_ENV", "dev"),
		HttpPort:        getEnv("HTTP_PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "data/mcm.db"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DBDsn:           getEnv("DATABASE_URL", getEnv("DB_DSN", "")),
		StaticDir:       getEnv("STATIC_DIR", "web/dist"),
		CloudConfigPath: getEnv("CLOUD_CONFIG", "config/cloud.yaml"),
	}
	return cfg
}

// LoadCloud reads and validates the YAML provider inventory.
func LoadCloud(path string) (*CloudConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cloud config: %w", err)
	}
	var cc CloudConfig
	if err := yaml.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("parse cloud config: %w", err)
	}
	if err := cc.Validate(); err != nil {
		return nil, err
	}
	return &cc, nil
}

func (c *CloudConfig) Validate() error {
	if c.AWS == nil && c.GCP == nil && c.Mock == nil {
		return fmt.Errorf("cloud config: no providers configured")
	}
	if c.AWS != nil && len(c.AWS.Regions) == 0 {
		return fmt.Errorf("cloud config: aws.regions is required")
	}
	if c.GCP != nil {
		if c.GCP.Project == "" {
			return fmt.Errorf("cloud config: gcp.project is required")
		}
		if len(c.GCP.Zones) == 0 {
			return fmt.Errorf("cloud config: gcp.zones is required")
		}
	}
	return nil
}

// RegionsFor returns the configured regions (zones, for GCP) of a provider.
func (c *CloudConfig) RegionsFor(provider string) []string {
	switch provider {
	case "aws":
		if c.AWS != nil {
			return c.AWS.Regions
		}
	case "gcp":
		if c.GCP != nil {
			return c.GCP.Zones
		}
	case "mock":
		if c.Mock != nil {
			return c.Mock.Regions
		}
	}
	return nil
}

func (c *CloudConfig) IsValidRegion(provider, region string) bool {
	for _, r := range c.RegionsFor(provider) {
		if r == region {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
