package config

import (
	"os"
	"path/filepath"
)

// DefaultDir resolves the configuration directory:
// $WHISTLE_CONFIG_DIR, then /etc/whistle for root, then ~/.config/whistle.
func DefaultDir() string {
	if dir := os.Getenv("WHISTLE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return SystemDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return SystemDir
	}
	return filepath.Join(home, UserConfigDir)
}

// DefaultPath returns the config file inside DefaultDir. An existing
// config.yml or config.json is preferred over creating config.yaml.
func DefaultPath() string {
	return PathIn(DefaultDir())
}

// PathIn returns the config file to use inside dir.
func PathIn(dir string) string {
	for _, name := range []string{ConfigFile, "config.yml", "config.json"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, ConfigFile)
}
