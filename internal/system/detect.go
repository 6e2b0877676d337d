package system

import (
	"bufio"
	"strings"
)

// OSRelease holds the fields of /etc/os-release the inspection layer uses.
type OSRelease struct {
	ID              string
	IDLike          []string
	VersionCodename string
	PrettyName      string
}

// ParseOSRelease parses the KEY=value format of os-release(5).
func ParseOSRelease(content string) OSRelease {
	var rel OSRelease
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			rel.ID = value
		case "ID_LIKE":
			rel.IDLike = strings.Fields(value)
		case "VERSION_CODENAME":
			rel.VersionCodename = value
		case "PRETTY_NAME":
			rel.PrettyName = value
		}
	}
	return rel
}

// Distro returns the normalized distribution family. ID wins; ID_LIKE is
// consulted for derivatives such as linuxmint or rocky.
func (r OSRelease) Distro() string {
	if r.ID == "" {
		return "unknown"
	}
	distro := NormalizeDistro(r.ID)
	if isDebian(distro) || IsRHEL(distro) || distro == "arch" || distro == "alpine" {
		return distro
	}
	for _, like := range r.IDLike {
		if n := NormalizeDistro(like); isDebian(n) || IsRHEL(n) || n == "arch" || n == "alpine" {
			return n
		}
	}
	return distro
}

// NormalizeDistro maps a distribution name to its canonical identifier.
func NormalizeDistro(distro string) string {
	distro = strings.ToLower(distro)
	switch {
	case strings.Contains(distro, "ubuntu"):
		return "ubuntu"
	case strings.Contains(distro, "debian"):
		return "debian"
	case strings.Contains(distro, "centos"):
		return "centos"
	case strings.Contains(distro, "rhel"), strings.Contains(distro, "redhat"):
		return "rhel"
	case strings.Contains(distro, "fedora"):
		return "fedora"
	case strings.Contains(distro, "arch"):
		return "arch"
	case strings.Contains(distro, "alpine"):
		return "alpine"
	default:
		return distro
	}
}

// isDebian returns true if the system is Debian-based
func isDebian(distro string) bool {
	return distro == "debian" || distro == "ubuntu"
}

// IsRHEL returns true if the system is RHEL-based
func IsRHEL(distro string) bool {
	return distro == "rhel" || distro == "centos" || distro == "fedora"
}
