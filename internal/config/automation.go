package config

import (
	"fmt"
	"os"
	"strconv"
)

const EnvAutomationDispatchAttempts = "HARBOR_AUTOMATION_DISPATCH_ATTEMPTS"

// AutomationConfig tunes rule evaluation.
type AutomationConfig struct {
	// DispatchAttempts bounds in-process enqueue retries for a fired rule.
	DispatchAttempts int `toml:"dispatch_attempts"`
}

func (c *AutomationConfig) Finalize() error {
	if c.DispatchAttempts == 0 {
		c.DispatchAttempts = 3
	}
	if v := os.Getenv(EnvAutomationDispatchAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DispatchAttempts = n
		}
	}
	if c.DispatchAttempts < 1 {
		return fmt.Errorf("dispatch_attempts must be positive")
	}
	return nil
}

func (c *AutomationConfig) Merge(overlay *AutomationConfig) {
	if overlay.DispatchAttempts != 0 {
		c.DispatchAttempts = overlay.DispatchAttempts
	}
}
