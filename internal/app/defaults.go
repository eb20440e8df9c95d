package app

import (
	"fmt"
	"os"
	"path/filepath"

	"sehri-go/internal/config"
)

// Environment variables read at startup. A .env file in the working directory
// is loaded into the environment by the CLI before these are consulted.
const (
	EnvConfigPath    = "SEHRI_CONFIG_PATH"
	EnvHome          = "SEHRI_HOME"
	EnvPassphrase    = "SEHRI_PASSPHRASE"
	EnvTelegramToken = "SEHRI_TELEGRAM_TOKEN"
	EnvPostgresDSN   = "SEHRI_POSTGRES_DSN"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SEHRI_CONFIG_PATH: config file location (default: ~/.config/sehri.toml)
//   - SEHRI_HOME: base directory for sehri data (default: ~/.local/share/sehri)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// ApplyEnv overrides secrets in cfg with values from the environment, so they
// need not be written to the config file.
func ApplyEnv(cfg *config.Config) {
	if v := os.Getenv(EnvTelegramToken); v != "" {
		cfg.Notifier.TelegramToken = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Store.PostgresDSN = v
	}
}

// PassphraseFromEnv returns the passphrase set in SEHRI_PASSPHRASE.
func PassphraseFromEnv() (string, bool) {
	v := os.Getenv(EnvPassphrase)
	return v, v != ""
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "sehri.toml"), nil
}

// getBaseDir returns the base directory for sehri data, checking SEHRI_HOME first,
// then falling back to the XDG default ~/.local/share/sehri.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "sehri"), nil
}
