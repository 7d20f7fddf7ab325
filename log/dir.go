package log

import (
	"os"
	"path/filepath"
	"runtime"
)

func getDefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return defaultDir(runtime.GOOS, home, os.Getenv), nil
}

// defaultDir is ~/Library/Logs/voxnote on macOS,
// %LOCALAPPDATA%\voxnote\logs on Windows and
// $XDG_CONFIG_HOME/voxnote/logs elsewhere.
func defaultDir(goos, home string, getenv func(string) string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "voxnote")
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "voxnote", "logs")
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "voxnote", "logs")
}
