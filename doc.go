// Package hardenspec checks a Linux host against a hardening policy.
//
// A fixed catalogue of read-only rules covers packages, automatic updates,
// intrusion prevention, the firewall, cron, SSH, kernel parameters, sudo,
// PAM, logging, accounts, core dumps, /tmp and file integrity. Each rule
// reports PASS, FAIL, ERROR or SKIP against a host reached locally, through
// nsenter, inside a container or over SSH.
package hardenspec
