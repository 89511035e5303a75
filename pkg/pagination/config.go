// Package pagination pages tenant-scoped listings.
package pagination

import (
	"fmt"
	"os"
	"strconv"
)

// Config bounds the page sizes callers may request.
type Config struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// ConfigEnv names the environment variables that override Config.
type ConfigEnv struct {
	DefaultPageSize string
	MaxPageSize     string
}

// Finalize fills unset sizes with 50 and 200, applies env, and rejects a
// default larger than the maximum. A set variable that is not an integer is
// an error.
func (c *Config) Finalize(env *ConfigEnv) error {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 50
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 200
	}

	if env != nil {
		overrides := []struct {
			name   string
			target *int
		}{
			{env.DefaultPageSize, &c.DefaultPageSize},
			{env.MaxPageSize, &c.MaxPageSize},
		}
		for _, o := range overrides {
			if err := intEnv(o.name, o.target); err != nil {
				return err
			}
		}
	}

	switch {
	case c.DefaultPageSize < 1:
		return fmt.Errorf("default_page_size must be positive, got %d", c.DefaultPageSize)
	case c.MaxPageSize < 1:
		return fmt.Errorf("max_page_size must be positive, got %d", c.MaxPageSize)
	case c.DefaultPageSize > c.MaxPageSize:
		return fmt.Errorf("default_page_size %d cannot exceed max_page_size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

// Merge overwrites sizes that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultPageSize != 0 {
		c.DefaultPageSize = overlay.DefaultPageSize
	}
	if overlay.MaxPageSize != 0 {
		c.MaxPageSize = overlay.MaxPageSize
	}
}

func intEnv(name string, target *int) error {
	if name == "" {
		return nil
	}
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = n
	return nil
}
