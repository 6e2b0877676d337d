// Package system provides the local process runner and the small amount of
// host detection the transports need. When running in Docker with the host
// root mounted at /host, the host's PID 1 namespaces are reachable via nsenter.
package system

import "os"

// hostRoot is set to "/host" when running in container with host mounts
var hostRoot = ""

func init() {
	if _, err := os.Stat("/host/proc"); err == nil {
		hostRoot = "/host"
	}
}

// IsInContainer returns true if running in containerized environment
func IsInContainer() bool {
	return hostRoot != ""
}

// CanEnterHost reports whether the host namespaces can be entered from here:
// we run in a container with the host mounted and nsenter is on PATH.
func CanEnterHost() bool {
	return IsInContainer() && CommandExists("nsenter")
}
