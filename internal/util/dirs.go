package util

import (
	"fmt"
	"os"
)

// GetStateDir returns where baselines and metrics land when no path is given.
// HARDENSPEC_STATE_DIR overrides it.
func GetStateDir() string {
	if dir := os.Getenv("HARDENSPEC_STATE_DIR"); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return "/var/lib/hardenspec"
	}
	return fmt.Sprintf("/tmp/hardenspec-%d", os.Getuid())
}
