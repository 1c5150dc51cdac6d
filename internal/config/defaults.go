package config

import (
	"net"
	"strconv"
	"time"
)

const (
	DefaultListenHost    = "127.0.0.1"
	DefaultListenPort    = 5555
	DefaultBufferSize    = 4096
	DefaultRetryInterval = 1 * time.Second
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

func (c *Config) applyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = DefaultListenHost
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultListenPort
	}
	if c.Relay.BufferSize == 0 {
		c.Relay.BufferSize = DefaultBufferSize
	}
	if c.Relay.RetryInterval == 0 {
		c.Relay.RetryInterval = DefaultRetryInterval
	}
	// An unset max keeps the retry interval fixed.
	if c.Relay.RetryMaxInterval == 0 {
		c.Relay.RetryMaxInterval = c.Relay.RetryInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
