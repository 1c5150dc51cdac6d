package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Usage is printed when the positional arguments do not fit.
const Usage = "passthru [flags] HOSTADDR HOSTPORT [LOCALADDR [LOCALPORT]]"

// ErrUsage means the argument count is wrong and usage should be shown.
var ErrUsage = errors.New("usage: " + Usage)

// ApplyArgs overlays HOSTADDR HOSTPORT [LOCALADDR [LOCALPORT]] onto c.
// Arguments left out keep whatever c already holds.
func (c *Config) ApplyArgs(args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return ErrUsage
	}
	if len(args) == 4 {
		port, err := parsePort("LOCALPORT", args[3])
		if err != nil {
			return err
		}
		c.Listen.Port = port
	}
	if len(args) >= 3 {
		c.Listen.Host = args[2]
	}
	port, err := parsePort("HOSTPORT", args[1])
	if err != nil {
		return err
	}
	c.Remote.Host = args[0]
	c.Remote.Port = port
	return nil
}

func parsePort(name, s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, s)
	}
	return port, nil
}
