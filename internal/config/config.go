package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DurationPresets are the selectable recording caps, in seconds. Durations
// are picked from this set rather than validated as free-form input.
var DurationPresets = []int{60, 300, 900, 1800, 3600, 7200}

// AppConfig holds the client configuration
type AppConfig struct {
	ServerURL       string `json:"server_url"`
	DefaultDuration int    `json:"default_duration_seconds"`
	DownloadDir     string `json:"download_dir"`
	LogFile         string `json:"log_file"`
	LogLevel        string `json:"log_level"`
}

// Default config
func defaultConfig() *AppConfig {
	return &AppConfig{
		ServerURL:       "http://127.0.0.1:8000",
		DefaultDuration: 7200,
		DownloadDir:     "videos",
		LogFile:         "camrec.log",
		LogLevel:        "info",
	}
}

// getConfigPath ensures the config directory and file follow the Linux XDG convention
func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "camrec")

	// Ensure the directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config file from the ~/.config/camrec directory and returns a config object
func Load() (*AppConfig, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("error getting config path: %v", err)
	}

	// Check if the config file exists and return the default config if not
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return applyEnv(defaultConfig()), nil
	}

	configFile, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %v", err)
	}
	defer configFile.Close()

	data, err := io.ReadAll(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	// Load the default config to fill in missing fields
	config := defaultConfig()

	// Unmarshal into the default config
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file: %v", err)
	}

	return applyEnv(config), nil
}

// Save writes the config to the ~/.config/camrec directory
func Save(config *AppConfig) error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("error getting config path: %v", err)
	}

	configBytes, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling config: %v", err)
	}

	if err := os.WriteFile(configPath, configBytes, 0644); err != nil {
		return fmt.Errorf("error writing config file: %v", err)
	}

	return nil
}

// applyEnv lets the environment override file values. The CLI loads .env
// files before this runs.
func applyEnv(config *AppConfig) *AppConfig {
	if v := os.Getenv("CAMREC_SERVER_URL"); v != "" {
		config.ServerURL = v
	}
	if v := os.Getenv("CAMREC_DOWNLOAD_DIR"); v != "" {
		config.DownloadDir = v
	}
	if v := os.Getenv("CAMREC_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	return config
}
