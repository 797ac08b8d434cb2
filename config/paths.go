package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetConfigDir returns the platform-specific configuration directory.
// Linux/Mac: ~/.config/convo
// Windows: C:\Users\username\.config\convo
func GetConfigDir() string {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		return filepath.Join(userProfile, ".config", "convo")
	}

	home := os.Getenv("HOME")
	return filepath.Join(home, ".config", "convo")
}

// GetDefaultDataDir returns the platform-specific default data directory.
// Linux/Mac: ~/.local/share/convo
// Windows: C:\Users\username\AppData\Local\convo
func GetDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			localAppData = filepath.Join(userProfile, "AppData", "Local")
		}
		return filepath.Join(localAppData, "convo")
	}

	home := os.Getenv("HOME")
	return filepath.Join(home, ".local", "share", "convo")
}

// GetSettingsFilePath returns the path to settings.toml.
func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
