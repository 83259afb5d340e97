package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Record backend (hosted REST API)
	BackendURL    string
	BackendAPIKey string
	StorageBucket string

	// Backend selection
	DataBackend string

	// Offline mirror
	SQLiteDBPath string

	// Offline asset cache
	OriginURL      string
	AssetCachePath string
	AssetVersion   string
	AssetManifest  []string
	DynamicHosts   []string

	// Scan queue
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Vision extraction
	GeminiAPIKey   string
	GeminiModel    string
	ExtractTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8082"),

		BackendURL:    getEnv("BACKEND_URL", ""),
		BackendAPIKey: getEnv("BACKEND_API_KEY", ""),
		StorageBucket: getEnv("STORAGE_BUCKET", "receipts"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/snapreceipt.db"),

		OriginURL:      getEnv("ORIGIN_URL", ""),
		AssetCachePath: getEnv("ASSET_CACHE_PATH", "./data/assetcache.db"),
		AssetVersion:   getEnv("ASSET_VERSION", "receipts-v2"),
		AssetManifest:  getEnvList("ASSET_MANIFEST", "/,/index.html,/app.js,/styles.css,/manifest.webmanifest"),
		DynamicHosts:   getEnvList("DYNAMIC_HOSTS", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "snapreceipt"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "scan_receipts"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
		ExtractTimeout: getEnvDuration("EXTRACT_TIMEOUT", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "rest", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate REST backend configuration if backend is rest
	if c.DataBackend == "rest" {
		if c.BackendURL == "" {
			errors = append(errors, "backend URL is required when using rest backend")
		} else if parsedURL, err := url.Parse(c.BackendURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid backend URL '%s': %v", c.BackendURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid backend URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.BackendAPIKey == "" {
			errors = append(errors, "backend API key is required when using rest backend")
		}
	}

	// Validate SQLite path if the mirror is enabled
	if c.DataBackend == "sqlite" || c.SQLiteDBPath != "" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate origin URL if the asset gateway is enabled
	if c.OriginURL != "" {
		if parsedURL, err := url.Parse(c.OriginURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid origin URL '%s': %v", c.OriginURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid origin URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.AssetVersion == "" {
			errors = append(errors, "asset cache version cannot be empty when origin URL is provided")
		}
		if len(c.AssetManifest) == 0 {
			errors = append(errors, "asset manifest cannot be empty when origin URL is provided")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate extraction configuration
	if c.ExtractTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid extract timeout %v: must be at least 1 second", c.ExtractTimeout))
	} else if c.ExtractTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid extract timeout %v: must be at most 5 minutes", c.ExtractTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
