package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Remote  RemoteConfig  `yaml:"-"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RemoteConfig is filled from the required HOSTADDR HOSTPORT arguments only.
type RemoteConfig struct {
	Host string
	Port int
}

type RelayConfig struct {
	BufferSize       int           `yaml:"buffer_size"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	RetryMaxInterval time.Duration `yaml:"retry_max_interval"`
	NoDelay          *bool         `yaml:"no_delay"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a Config with every optional field filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ListenAddr and RemoteAddr are for log lines; dialing resolves the host first.
func (c *Config) ListenAddr() string {
	return joinHostPort(c.Listen.Host, c.Listen.Port)
}

func (c *Config) RemoteAddr() string {
	return joinHostPort(c.Remote.Host, c.Remote.Port)
}

// NoDelayEnabled reports whether TCP_NODELAY should be set on relayed sockets.
func (c *RelayConfig) NoDelayEnabled() bool {
	return c.NoDelay == nil || *c.NoDelay
}
