/*
Package configs is responsible for loading and parsing the application's configuration settings.

All values come from operating system environment variables, with development
defaults and fail-fast validation for production deployments.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig contains all configuration parameters required for the relay to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// EnforceUniqueNames controls whether login rejects a display name that is
	// already held by another live connection. The name availability query
	// always answers truthfully regardless of this setting.
	EnforceUniqueNames bool

	// AdminKey grants admin privileges to logins that present it. Admin
	// features are disabled when the key is empty.
	AdminKey string

	// HistoryLimit bounds the number of messages retained in the in-memory
	// history store.
	HistoryLimit int

	// S3 Storage Settings (optional; avatar upload is disabled when unset)
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageEnabled reports whether the optional S3 avatar storage is configured.
func (c *AppConfig) StorageEnabled() bool {
	return c.S3BucketName != "" && c.S3Endpoint != "" &&
		c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values where sensible and performs type conversions and validation.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	// AllowedOrigins
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	// EnforceUniqueNames
	uniqueStr := os.Getenv("NAME_UNIQUENESS")
	if uniqueStr == "" {
		cfg.EnforceUniqueNames = false
	} else {
		unique, err := strconv.ParseBool(uniqueStr)
		if err != nil {
			return nil, fmt.Errorf("invalid NAME_UNIQUENESS environment variable: %w", err)
		}
		cfg.EnforceUniqueNames = unique
	}

	// AdminKey
	cfg.AdminKey = os.Getenv("ADMIN_KEY")

	// HistoryLimit
	historyStr := os.Getenv("HISTORY_LIMIT")
	if historyStr == "" {
		historyStr = "500"
	}
	historyLimit, err := strconv.Atoi(historyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT environment variable: %w", err)
	}
	if historyLimit < 1 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be at least 1, got %d", historyLimit)
	}
	cfg.HistoryLimit = historyLimit

	// --- S3 Storage Settings (optional, all-or-nothing) ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	s3Vars := []string{cfg.S3BucketName, cfg.S3Endpoint, cfg.S3AccessKeyID, cfg.S3SecretAccessKey}
	set := 0
	for _, v := range s3Vars {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(s3Vars) {
		return nil, fmt.Errorf("incomplete S3 configuration: S3_BUCKET_NAME, S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}

	return cfg, nil
}
