package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxPackageIDLength is the longest package id the gallery accepts.
const maxPackageIDLength = 100

// packageIDRegex matches valid NuGet package ids.
var packageIDRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// ValidatePackageID validates a package id for safety and correctness.
// It rejects ids that could be used for path traversal or injection attacks
// when they are spliced into download URLs.
func ValidatePackageID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPackage, "package id cannot be empty")
	}
	if len(id) > maxPackageIDLength {
		return New(ErrCodeInvalidPackage, "package id too long (max %d characters)", maxPackageIDLength)
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidPackage, "package id contains invalid characters: %q", "..")
	}
	if !packageIDRegex.MatchString(id) {
		return New(ErrCodeInvalidPackage, "invalid package id: %q", id)
	}
	return nil
}

// ValidateVersionSpec validates a version or version range as typed by a user
// or declared in a manifest. An empty spec means "latest" and is accepted.
func ValidateVersionSpec(spec string) error {
	if len(spec) > 256 {
		return New(ErrCodeInvalidVersion, "version too long (max 256 characters)")
	}
	for _, r := range spec {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidVersion, "version contains invalid control characters")
		}
	}
	if strings.ContainsAny(spec, "/\\") {
		return New(ErrCodeInvalidVersion, "version cannot contain path separators")
	}
	return nil
}

// ValidateMoniker validates a target framework moniker.
func ValidateMoniker(moniker string) error {
	if moniker == "" {
		return New(ErrCodeInvalidInput, "framework moniker cannot be empty")
	}
	if strings.ContainsAny(moniker, "/\\") || strings.Contains(moniker, "..") {
		return New(ErrCodeInvalidInput, "framework moniker contains invalid characters")
	}
	for _, r := range moniker {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "framework moniker contains invalid characters")
		}
	}
	return nil
}
