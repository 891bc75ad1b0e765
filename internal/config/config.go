package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8096
	DefaultCatalogPath = "ds-system.xml"
	DefaultDialTimeout = 5 * time.Second
)

type ClientConfig struct {
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	User        string `yaml:"user" toml:"user"`
	Algorithm   string `yaml:"algorithm" toml:"algorithm"`
	CatalogPath string `yaml:"catalog_path" toml:"catalog-path"`

	DialTimeout   time.Duration `yaml:"dial_timeout" toml:"dial-timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout" toml:"read-timeout"`
	DialRetries   int           `yaml:"dial_retries" toml:"dial-retries"`
	RetryInterval time.Duration `yaml:"retry_interval" toml:"retry-interval"`

	Log LogConfig `yaml:"log" toml:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Host:          DefaultHost,
		Port:          DefaultPort,
		CatalogPath:   DefaultCatalogPath,
		DialTimeout:   DefaultDialTimeout,
		RetryInterval: time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadClientConfig reads path over the defaults. Files ending in .toml are
// decoded as TOML, everything else as YAML. An empty path returns the
// defaults.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading client config")
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.CatalogPath == "" {
		return errors.New("catalog path must not be empty")
	}
	if c.DialRetries < 0 {
		return errors.Errorf("dial retries must not be negative, got %d", c.DialRetries)
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.RetryInterval < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// Addr is the host:port of the job-feed server.
func (c *ClientConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
