// Package versionutil parses and compares exporter release versions.
package versionutil

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Verdict is the outcome of comparing the installed version to the pinned one.
type Verdict string

// Verdicts.
const (
	NotInstalled Verdict = "not-installed"
	UpToDate     Verdict = "up-to-date"
	Outdated     Verdict = "outdated"
	Newer        Verdict = "newer"
	Unknown      Verdict = "unknown"
)

// versionRegex matches the "version X.Y.Z" banner printed by Prometheus
// exporters, e.g. "node_exporter, version 1.8.1 (branch: HEAD, ...)".
var versionRegex = regexp.MustCompile(`version (\d+\.\d+\.\d+\S*)`)

// ParseVersion extracts the version from --version output.
// It returns "" when no version banner is present.
func ParseVersion(output string) string {
	m := versionRegex.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return strings.TrimSuffix(m[1], ",")
}

// Compare compares an installed version with the pinned one.
func Compare(pinned, installed string) Verdict {
	if installed == "" {
		return NotInstalled
	}
	p, i := "v"+pinned, "v"+installed
	if !semver.IsValid(p) || !semver.IsValid(i) {
		return Unknown
	}
	switch c := semver.Compare(i, p); {
	case c == 0:
		return UpToDate
	case c < 0:
		return Outdated
	default:
		return Newer
	}
}
