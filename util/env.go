package util

import (
	"os"
	"strings"
)

func GetenvDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// ExpandHomeDir replaces a leading "~/" with the home directory of the
// current user. Paths are returned as is when the home is unknown.
func ExpandHomeDir(filename string) string {
	if !strings.HasPrefix(filename, "~/") {
		return filename
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return home + filename[1:]
}

func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}
