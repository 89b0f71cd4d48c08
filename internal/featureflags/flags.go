package featureflags

import (
	"os"
	"strings"
)

// Known flags.
const (
	SeedSampleData     = "seed_sample_data"
	EmailNotifications = "email_notifications"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes/on (case-insensitive)
func Enabled(name string) bool {
	v := strings.TrimSpace(os.Getenv("FLAG_" + strings.ToUpper(name)))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Snapshot returns the state of every known flag, for startup logging.
func Snapshot() map[string]bool {
	return map[string]bool{
		SeedSampleData:     Enabled(SeedSampleData),
		EmailNotifications: Enabled(EmailNotifications),
	}
}
