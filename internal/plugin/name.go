package plugin

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var fullNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// SplitFullName validates an "owner/name" identifier and returns its parts.
func SplitFullName(fullName string) (owner, name string, err error) {
	if !fullNamePattern.MatchString(fullName) {
		return "", "", Validationf("invalid repository %q: expected owner/name", fullName)
	}
	owner, name, _ = strings.Cut(fullName, "/")
	if owner == "." || owner == ".." || name == "." || name == ".." {
		return "", "", Validationf("invalid repository %q: expected owner/name", fullName)
	}
	return owner, name, nil
}

// FullNameFromURL extracts "owner/name" from a GitHub repository URL.
func FullNameFromURL(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Hostname() != "github.com" {
		return "", fmt.Errorf("not a GitHub URL: %s", repoURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid GitHub URL format: %s", repoURL)
	}
	return strings.TrimSuffix(parts[0]+"/"+parts[1], ".git"), nil
}
