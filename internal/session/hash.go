package session

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
)

// UserHash returns the first 8 hex chars of SHA-256 over the current
// username. This isolates users on shared temp directories without exposing
// the raw name. When the OS lookup fails, environment fallbacks are used.
func UserHash() string {
	return hashUser(currentUsername())
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

func hashUser(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])[:8]
}
