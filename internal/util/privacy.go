package util

import (
	"strings"
)

// maskIP masks an IP address for privacy
func maskIP(ip string) string {
	if ip == "" {
		return "***"
	}

	// IPv6
	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0] + ":***"
		}
		return "***"
	}

	// IPv4
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".***.***"
	}

	return "***"
}

// MaskHostname masks a hostname for privacy
func MaskHostname(hostname string) string {
	if len(hostname) == 0 {
		return "srv-****"
	}
	if len(hostname) == 1 {
		return "srv-" + hostname + "***"
	}
	return "srv-" + hostname[:2] + "**"
}

// MaskAddress masks the host part of a host or host:port address, keeping the port
func MaskAddress(addr string) string {
	host, port := addr, ""
	if i := strings.LastIndex(addr, ":"); i > 0 && !strings.HasSuffix(addr, "]") && strings.Count(addr, ":") == 1 {
		host, port = addr[:i], addr[i:]
	}
	isIP := true
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' && r != ':' {
			isIP = false
			break
		}
	}
	if isIP {
		return maskIP(host) + port
	}
	return MaskHostname(host) + port
}
