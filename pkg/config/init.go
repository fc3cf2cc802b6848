package config

import (
	"fmt"
	"os"
)

// InitConfig writes a sample configuration file to the default location
// and returns its path. Fails if the file exists unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to the given path.
// Fails if the file exists unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	return SaveConfig(GetDefaultConfig(), path)
}
