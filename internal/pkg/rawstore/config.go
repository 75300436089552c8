package rawstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubops/supporter360/internal/pkg/env"
)

// Config holds raw payload store configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads raw payload store configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "eu-west-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("RAW_PAYLOAD_STORE_ENABLED", "true") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the raw payload store is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the raw payload store is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the raw payload store is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the raw payload store is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// ObjectKey builds the blob key for a verified webhook payload.
// Format: {provider}/{yyyy-mm-dd}/{correlationId}.json
func ObjectKey(provider, correlationID string, receivedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", provider, receivedAt.UTC().Format("2006-01-02"), correlationID)
}
