package env

import "os"

// Get reads an environment variable, treating empty the same as unset.
// Typed configuration lives in pkg/config; this exists for the few spots
// that need a raw value before config is loaded.
func Get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
