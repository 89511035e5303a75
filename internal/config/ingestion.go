package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/harbor/pkg/formatting"
)

const EnvIngestionMaxFileSize = "HARBOR_INGESTION_MAX_FILE_SIZE"

// IngestionConfig bounds the input accepted by the file ingestion pipeline.
type IngestionConfig struct {
	MaxFileSize string `toml:"max_file_size"`
}

// MaxFileSizeBytes returns MaxFileSize as a byte count.
func (c *IngestionConfig) MaxFileSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 50 * 1024 * 1024
	}
	return size
}

func (c *IngestionConfig) Finalize() error {
	if c.MaxFileSize == "" {
		c.MaxFileSize = "50MB"
	}
	if v := os.Getenv(EnvIngestionMaxFileSize); v != "" {
		c.MaxFileSize = v
	}

	size, err := formatting.ParseBytes(c.MaxFileSize)
	if err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	return nil
}

func (c *IngestionConfig) Merge(overlay *IngestionConfig) {
	if overlay.MaxFileSize != "" {
		c.MaxFileSize = overlay.MaxFileSize
	}
}
