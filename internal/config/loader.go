package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultConfigBaseName is the file name, without extension, searched for
// in the current directory.
const DefaultConfigBaseName = "scoutly"

// XDGConfigBaseName is the file name, without extension, searched for in
// the XDG config directory.
const XDGConfigBaseName = "config"

// ConfigExtensions are the recognised config file extensions in search order.
var ConfigExtensions = []string{".json", ".toml", ".yaml", ".yml"}

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnsupportedConfigFormat is returned for an unknown file extension.
	ErrUnsupportedConfigFormat = errors.New("unsupported configuration file format: use .json, .toml, .yaml or .yml")
)

// LoadConfigFile loads a configuration file. The format is chosen by
// extension. If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cf File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cf)
	case ".toml":
		err = toml.Unmarshal(data, &cf)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cf)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Initialize Sites map if nil
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for scoutly.{json,toml,yaml,yml} in the current directory
// 3. Look for config.{json,toml,yaml,yml} in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	if cwd, err := os.Getwd(); err == nil {
		if path := firstExisting(cwd, DefaultConfigBaseName); path != "" {
			return path
		}
	}

	// Check XDG config directory
	return firstExisting(XDGConfigDir(), XDGConfigBaseName)
}

func firstExisting(dir, base string) string {
	for _, ext := range ConfigExtensions {
		path := filepath.Join(dir, base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
