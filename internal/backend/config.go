package backend

import (
	"fmt"

	"snapreceipt/internal/config"
)

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// REST specific
	BaseURL       string
	APIKey        string
	StorageBucket string

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		BaseURL:       appConfig.BackendURL,
		APIKey:        appConfig.BackendAPIKey,
		StorageBucket: appConfig.StorageBucket,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: "data",
	}, nil
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RESTBackend:
		if c.BaseURL == "" {
			return fmt.Errorf("backend URL is required for rest backend")
		}
		if c.APIKey == "" {
			return fmt.Errorf("backend API key is required for rest backend")
		}
		if c.StorageBucket == "" {
			return fmt.Errorf("storage bucket is required for rest backend")
		}

	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case MemoryBackend:
		// DataDirectory defaults to "data" if empty.
	}

	return nil
}
