package config

import (
	"errors"
	"fmt"
)

// Validate checks that required fields are set and values are in range.
func (c *Config) Validate() error {
	if c.Remote.Host == "" {
		return errors.New("remote.host is required")
	}
	if err := validatePort("remote.port", c.Remote.Port); err != nil {
		return err
	}
	if c.Listen.Host == "" {
		return errors.New("listen.host is required")
	}
	if err := validatePort("listen.port", c.Listen.Port); err != nil {
		return err
	}
	if c.Relay.BufferSize <= 0 {
		return fmt.Errorf("relay.buffer_size must be positive, got %d", c.Relay.BufferSize)
	}
	if c.Relay.RetryInterval <= 0 {
		return fmt.Errorf("relay.retry_interval must be positive, got %s", c.Relay.RetryInterval)
	}
	if c.Relay.RetryMaxInterval < c.Relay.RetryInterval {
		return fmt.Errorf("relay.retry_max_interval (%s) is below relay.retry_interval (%s)",
			c.Relay.RetryMaxInterval, c.Relay.RetryInterval)
	}
	switch c.Logging.Format {
	case "console", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, text, json", c.Logging.Format)
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1-65535, got %d", field, port)
	}
	return nil
}
