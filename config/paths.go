package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Dir is the directory holding config.yaml and an optional .env.
// SCRIBE_CONFIG_DIR overrides it.
func Dir() string {
	if d := os.Getenv("SCRIBE_CONFIG_DIR"); d != "" {
		return d
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "scribe")
	}
	return ".scribe"
}

func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DataDir holds the history store. SCRIBE_DATA_DIR overrides it.
func DataDir() string {
	if d := os.Getenv("SCRIBE_DATA_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scribe"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "scribe")
	case "windows":
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return filepath.Join(d, "scribe")
		}
		return filepath.Join(home, "AppData", "Local", "scribe")
	default:
		if d := os.Getenv("XDG_DATA_HOME"); d != "" {
			return filepath.Join(d, "scribe")
		}
		return filepath.Join(home, ".local", "share", "scribe")
	}
}
