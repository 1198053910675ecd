package configuration

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/pkg/errors"
)

// Provider kinds understood by the request builder and stream decoder.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var defaultConfig = Config{
	RequestTimeout: 300,
	Database:       "~/.config/sidekick/sidekick.db",
	Language:       "en",
}

// Config holds the synced namespace of the sidekick tool: the API
// configuration list, the active-id reference and ambient settings.
type Config struct {
	// Configurations a user has registered, in creation order.
	Configurations []*APIConfig `json:"api_configurations"`
	// ActiveConfigurationID references the configuration in effect.
	ActiveConfigurationID string `json:"active_configuration_id"`
	// Language of the interface.
	Language string `json:"language"`
	// RequestTimeout bounds one whole send operation, in seconds.
	RequestTimeout int `json:"request_timeout"`
	// Database is the path of the local store.
	Database string `json:"database"`
}

// APIConfig is one provider credential/model set.
type APIConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	// Endpoint of the chat-completions route. Required iff the provider is
	// openai-compatible; Gemini derives its endpoint from the model name.
	Endpoint string `json:"endpoint"`
	Model    string `json:"model"`
}

// Complete reports whether the configuration is usable. An incomplete active
// configuration is treated as "no configuration" for input enabling.
func (c *APIConfig) Complete() bool {
	if c == nil {
		return false
	}
	if c.APIKey == "" || c.Model == "" {
		return false
	}
	if c.Provider == ProviderOpenAI && c.Endpoint == "" {
		return false
	}
	return true
}

// ResolveActive picks the active configuration: the one matching activeID when
// present, else the first of the list as a documented fallback, else nil.
func ResolveActive(configs []*APIConfig, activeID string) *APIConfig {
	if activeID != "" {
		for _, config := range configs {
			if config.ID == activeID {
				return config
			}
		}
	}
	if len(configs) > 0 {
		return configs[0]
	}
	return nil
}

// Active resolves the active configuration of this config.
func (c *Config) Active() *APIConfig {
	return ResolveActive(c.Configurations, c.ActiveConfigurationID)
}

// Parse a configuration file, creating it with defaults when absent.
func Parse(path string) (*Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}
	if err := mergo.Merge(config, defaultConfig); err != nil {
		return nil, errors.Wrap(err, "merging defaults")
	}

	expandedDatabasePath, err := ExpandPath(config.Database)
	if err != nil {
		return nil, errors.Wrap(err, "expanding database path")
	}
	config.Database = expandedDatabasePath
	return config, nil
}

// Save a configuration file.
func (c *Config) Save(path string) error {
	path, err := ExpandPath(path)
	if err != nil {
		return errors.Wrap(err, "expanding path")
	}
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(path, bytes, 0644); err != nil {
		return errors.Wrap(err, "writing file")
	}
	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig.Save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}

// ExpandPath expands a leading ~ to the current user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", errors.Wrap(err, "getting current user")
	}
	return filepath.Join(usr.HomeDir, strings.TrimPrefix(path, "~")), nil
}
