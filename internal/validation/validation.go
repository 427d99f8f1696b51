// Package validation checks user-supplied names, paths and templates before
// they reach external commands or the rendered unit file.
package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Common validation errors.
var (
	ErrEmptyInput           = errors.New("input cannot be empty")
	ErrInvalidAccountName   = errors.New("invalid user or group name")
	ErrInvalidServiceName   = errors.New("invalid service name")
	ErrPathTraversal        = errors.New("path traversal detected")
	ErrInvalidPath          = errors.New("invalid path")
	ErrCommandInjection     = errors.New("potential command injection detected")
	ErrInvalidVersion       = errors.New("invalid version")
	ErrInvalidArch          = errors.New("unsupported architecture")
	ErrInvalidURL           = errors.New("invalid URL")
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidFlag          = errors.New("invalid exporter flag")
	ErrMissingPlaceholder   = errors.New("missing placeholder")
	ErrUnsupportedURLScheme = errors.New("unsupported URL scheme")
)

// Placeholders substituted into the download URL template.
const (
	PlaceholderVersion = "{version}"
	PlaceholderArch    = "{arch}"
)

var (
	// accountNameRegex follows useradd's NAME_REGEX default.
	// Examples: "node_exporter", "prometheus", "_exporter"
	accountNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

	// serviceNameRegex matches systemd unit name prefixes.
	// Examples: "node_exporter", "node-exporter@9100"
	serviceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9:_.@-]*$`)

	// flagRegex matches long-form exporter flags with an optional value.
	// Examples: "--collector.systemd", "--log.level=debug"
	flagRegex = regexp.MustCompile(`^--[a-z0-9][a-z0-9._-]*(=[^\s]*)?$`)

	// Architectures node_exporter publishes linux tarballs for.
	supportedArchs = map[string]bool{
		"386": true, "amd64": true, "arm64": true,
		"armv5": true, "armv6": true, "armv7": true,
		"mips": true, "mips64": true, "mips64le": true, "mipsle": true,
		"ppc64": true, "ppc64le": true, "riscv64": true, "s390x": true,
	}

	// shellMetaChars contains shell metacharacters that could enable injection
	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\", "\"", "'"}
)

// ValidateAccountName validates a system user or group name.
func ValidateAccountName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 32 || !accountNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountName, name)
	}
	return nil
}

// ValidateServiceName validates the systemd unit name (without ".service").
func ValidateServiceName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 255 || !serviceNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidServiceName, name)
	}
	return nil
}

// ValidatePath rejects null bytes and traversal sequences.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}

	// Check for null bytes
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}

	// Check for path traversal sequences
	if containsPathTraversal(path) {
		return fmt.Errorf("%w: %q contains traversal sequence", ErrPathTraversal, path)
	}

	return nil
}

// ValidateAbsolutePath validates a path that is written into the unit file
// or passed to privileged commands: absolute, clean and free of whitespace.
func ValidateAbsolutePath(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q must be absolute", ErrInvalidPath, path)
	}
	if path == "/" {
		return fmt.Errorf("%w: refusing to use the filesystem root", ErrInvalidPath)
	}
	if strings.ContainsAny(path, " \t") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidPath, path)
	}
	if containsShellMeta(path) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, path)
	}
	return nil
}

// ValidateVersion validates a release version such as "1.8.1".
// A leading "v" is not allowed; the URL template adds it.
func ValidateVersion(version string) error {
	if version == "" {
		return ErrEmptyInput
	}
	if strings.HasPrefix(version, "v") || semver.Canonical("v"+version) != "v"+version {
		return fmt.Errorf("%w: %q must be a semantic version like 1.8.1", ErrInvalidVersion, version)
	}
	return nil
}

// ValidateArch validates a release architecture.
func ValidateArch(arch string) error {
	if arch == "" {
		return ErrEmptyInput
	}
	if !supportedArchs[arch] {
		return fmt.Errorf("%w: %q", ErrInvalidArch, arch)
	}
	return nil
}

// ValidateURLTemplate validates the download URL template. It must contain
// the {version} placeholder and expand to an http(s) URL.
func ValidateURLTemplate(tmpl string) error {
	if tmpl == "" {
		return ErrEmptyInput
	}
	if len(tmpl) > 2048 {
		return fmt.Errorf("%w: URL too long", ErrInvalidURL)
	}
	if !strings.Contains(tmpl, PlaceholderVersion) {
		return fmt.Errorf("%w: %s in %q", ErrMissingPlaceholder, PlaceholderVersion, tmpl)
	}

	expanded := ExpandURLTemplate(tmpl, "0.0.0", "amd64")
	if containsShellMeta(expanded) || strings.ContainsAny(expanded, " \t") {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, tmpl)
	}

	u, err := url.Parse(expanded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURLScheme, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, tmpl)
	}
	return nil
}

// ExpandURLTemplate substitutes version and arch into a URL template.
func ExpandURLTemplate(tmpl, version, arch string) string {
	return strings.NewReplacer(PlaceholderVersion, version, PlaceholderArch, arch).Replace(tmpl)
}

// ValidateListenAddress validates a host:port listen address such as ":9100".
func ValidateListenAddress(addr string) error {
	if addr == "" {
		return ErrEmptyInput
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidListenAddress, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: port %q out of range", ErrInvalidListenAddress, port)
	}
	return nil
}

// ValidateFlag validates an extra command-line flag passed to the exporter.
func ValidateFlag(flag string) error {
	if flag == "" {
		return ErrEmptyInput
	}
	if !flagRegex.MatchString(flag) {
		return fmt.Errorf("%w: %q must look like --name or --name=value", ErrInvalidFlag, flag)
	}
	if containsShellMeta(flag) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, flag)
	}
	return nil
}

// ValidateEditor validates an editor command name or path.
func ValidateEditor(editor string) error {
	if strings.TrimSpace(editor) == "" {
		return ErrEmptyInput
	}
	if containsShellMeta(editor) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, editor)
	}
	return nil
}

// containsShellMeta checks if a string contains shell metacharacters.
func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}

// containsPathTraversal checks for common path traversal patterns.
func containsPathTraversal(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}

	// Check for URL-encoded traversal
	lower := strings.ToLower(path)
	return strings.Contains(lower, "%2e%2e")
}
